package password

import "testing"

func TestValidate_MinMax(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate("Ab1!"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}

	if err := cfg.Validate("Ab1!" + repeat('a', 60)); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestValidate_Classes(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		name string
		pw   string
		want error
	}{
		{"all classes", "Passw0rd!", nil},
		{"exactly eight", "Aa1!aaaa", nil},
		{"exactly fifty", "Aa1!" + repeat('a', 46), nil},
		{"space counts as special", "Pass w0rd", nil},
		{"no upper", "passw0rd!", ErrWeakPassword},
		{"no lower", "PASSW0RD!", ErrWeakPassword},
		{"no digit", "Password!", ErrWeakPassword},
		{"no special", "Passw0rdd", ErrWeakPassword},
		{"underscore is a word char", "Passw0rd_", ErrWeakPassword},
		{"seven chars", "Aa1!aaa", ErrPasswordTooShort},
		{"fifty one chars", "Aa1!" + repeat('a', 47), ErrPasswordTooLong},
		{"line feed", "Str0ng!P\nw", ErrWeakPassword},
		{"carriage return", "Str0ng!P\rw", ErrWeakPassword},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := cfg.Validate(tc.pw); err != tc.want {
				t.Fatalf("Validate(%q) = %v, want %v", tc.pw, err, tc.want)
			}
		})
	}
}

func TestValidate_BcryptByteLimit(t *testing.T) {
	cfg := DefaultConfig()
	pw := "Aa1!" + repeat('é', 40) // 44 runes, 84 bytes

	if err := cfg.Validate(pw); err != nil {
		t.Fatalf("argon2id has no byte cap, got %v", err)
	}

	cfg.Scheme = SchemeBcrypt
	if err := cfg.Validate(pw); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong under bcrypt, got %v", err)
	}
	if err := cfg.Validate("Aa1!" + repeat('é', 34)); err != nil {
		t.Fatalf("72 bytes must pass under bcrypt, got %v", err)
	}
}

func TestValidate_ClassesDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RequireClasses = false

	if err := cfg.Validate("password"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestHash_RejectsPolicyViolation(t *testing.T) {
	cfg := cheapConfig()

	if _, err := cfg.Hash("weakpass"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func repeat(r rune, n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = r
	}
	return string(out)
}
