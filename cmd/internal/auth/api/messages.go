package authapi

// Client-facing message table. Clients match on these strings, so they are
// kept byte-for-byte, spelling included.
const (
	msgLoggedIn           = "Logged In"
	msgInvalidCredentials = "Invalid username or password."
	msgUsernameInvalid    = "Username must be between 3 and 26 characters long, and can only contain alphanumerical, '-' and '_'"
	msgPasswordInvalid    = "Password must contain 1 uppercase letter, 1 lowercase letter, 1 number, and 1 special character."
	msgUserExists         = "User already exists with that username."
	msgCreated            = "Succesfully Created Account"
	msgUpdated            = "Account succesfully updated. If you changed your password, you will need to re-login on your devices."
	msgDeviceUnauthorized = "This device is not authorised to perform that action."
	msgDeleted            = "Account Deleted."

	msgInternal   = "Something went wrong. Please try again later."
	msgBadRequest = "Invalid request body."
)
