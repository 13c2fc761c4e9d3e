package lmsstub

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

var errTokenType = errors.New("wrong token type")

type claims struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// issuer mints and checks HS256 token pairs.
type issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func (i *issuer) pair(u *user) (access, refresh string, err error) {
	access, err = i.sign(u, tokenAccess, i.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = i.sign(u, tokenRefresh, i.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (i *issuer) sign(u *user, typ string, ttl time.Duration) (string, error) {
	now := i.now()
	c := claims{
		Username:  u.Username,
		Role:      u.Role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString(i.secret)
}

// parse returns the user id of a valid token of the given type.
func (i *issuer) parse(raw, typ string) (int, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}
	if c.TokenType != typ {
		return 0, errTokenType
	}
	return strconv.Atoi(c.Subject)
}
