package utils

import (
	"errors"
	"fmt"
	"time"

	"publish-pipeline/infrastructure/logger"

	"github.com/golang-jwt/jwt"
)

// ResetTokenTTL bounds how long a catalog reset confirmation stays valid.
const ResetTokenTTL = 5 * time.Minute

const resetPurpose = "catalog_reset"

var ErrInvalidResetToken = errors.New("invalid reset token")

func GetCurrentTime() time.Time {
	return time.Now().UTC()
}

func GenerateToken(payload map[string]interface{}, secretKey string) (string, error) {
	var claims jwt.MapClaims = payload
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while generate token")
		return "", err
	}
	return tokenString, nil
}

// GenerateResetToken issues a short-lived confirmation for wiping an owner's catalog.
func GenerateResetToken(ownerID, secretKey string, now time.Time) (string, error) {
	return GenerateToken(map[string]interface{}{
		"sub":     ownerID,
		"purpose": resetPurpose,
		"iat":     now.Unix(),
		"exp":     now.Add(ResetTokenTTL).Unix(),
	}, secretKey)
}

// VerifyResetToken checks signature, expiry, purpose and owner binding.
func VerifyResetToken(tokenString, ownerID, secretKey string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidResetToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ErrInvalidResetToken
	}
	if claims["purpose"] != resetPurpose || claims["sub"] != ownerID {
		return ErrInvalidResetToken
	}
	return nil
}
