package room

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	MemberId string `json:"member_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type IssueTokenParams struct {
	Username string
}

type IssueTokenResponse struct {
	AuthToken string
	MemberId  string
}

// IssueToken creates a new member identity and signs it.
func (s *service) IssueToken(params *IssueTokenParams) (IssueTokenResponse, error) {
	memberId := uuid.NewString()
	claims := Claims{
		MemberId: memberId,
		Username: params.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return IssueTokenResponse{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return IssueTokenResponse{AuthToken: signed, MemberId: memberId}, nil
}

func (s *service) ParseToken(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid || claims.MemberId == "" {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}
