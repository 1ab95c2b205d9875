package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid 令牌无效或已过期
var ErrTokenInvalid = errors.New("token invalid")

// OperatorClaims 后台运营账号 JWT 声明
type OperatorClaims struct {
	Operator string   `json:"operator"`
	Roles    []string `json:"roles,omitempty"`
	IsSuper  bool     `json:"is_super,omitempty"`
	jwt.RegisteredClaims
}

// OperatorTokenIssuer 后台令牌签发与校验
type OperatorTokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewOperatorTokenIssuer 创建令牌签发器
func NewOperatorTokenIssuer(secret, issuer string, expireHours int) *OperatorTokenIssuer {
	if expireHours <= 0 {
		expireHours = 24
	}
	return &OperatorTokenIssuer{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		ttl:    time.Duration(expireHours) * time.Hour,
	}
}

// Issue 签发令牌
func (i *OperatorTokenIssuer) Issue(operator string, roles []string, isSuper bool) (string, time.Time, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return "", time.Time{}, invalidRequest("operator is required")
	}
	if len(i.secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret is empty")
	}
	now := time.Now()
	expiresAt := now.Add(i.ttl)
	claims := OperatorClaims{
		Operator: operator,
		Roles:    roles,
		IsSuper:  isSuper,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   operator,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse 校验并解析令牌
func (i *OperatorTokenIssuer) Parse(tokenString string) (*OperatorClaims, error) {
	if len(i.secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if i.issuer != "" {
		options = append(options, jwt.WithIssuer(i.issuer))
	}
	parser := jwt.NewParser(options...)
	claims := &OperatorClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil || !token.Valid || strings.TrimSpace(claims.Operator) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
