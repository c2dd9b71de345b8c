package service

import (
	"fmt"
	"unicode"

	"github.com/pawpledge/internal/config"
)

// ErrWeakPassword 密码不满足强度策略
var ErrWeakPassword = newError(KindValidation, "error.password_weak", "password does not meet the policy")

func validatePassword(policy config.PasswordPolicyConfig, password string) error {
	if policy.MinLength <= 0 &&
		!policy.RequireUpper &&
		!policy.RequireLower &&
		!policy.RequireNumber &&
		!policy.RequireSpecial {
		return nil
	}

	if policy.MinLength > 0 {
		if len([]rune(password)) < policy.MinLength {
			return ErrWeakPassword.Wrap(fmt.Errorf("at least %d characters required", policy.MinLength))
		}
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasNumber = true
		default:
			hasSpecial = true
		}
	}

	switch {
	case policy.RequireUpper && !hasUpper:
		return ErrWeakPassword.Wrapf("an upper case letter is required")
	case policy.RequireLower && !hasLower:
		return ErrWeakPassword.Wrapf("a lower case letter is required")
	case policy.RequireNumber && !hasNumber:
		return ErrWeakPassword.Wrapf("a digit is required")
	case policy.RequireSpecial && !hasSpecial:
		return ErrWeakPassword.Wrapf("a special character is required")
	}
	return nil
}
