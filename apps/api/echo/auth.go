package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/user"
)

const (
	contextUserKey = "user"
	bearerPrefix   = "Bearer "
)

var (
	errNoCredentials = echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
	errTokenExpired  = echo.NewHTTPError(http.StatusUnauthorized, "Token has expired")
	errInvalidToken  = echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	errUserNotFound  = echo.NewHTTPError(http.StatusUnauthorized, "User not found")
	errUserInactive  = echo.NewHTTPError(http.StatusUnauthorized, user.ErrInactive.Error())
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	ID int `json:"id"`
}

func GetUserClaims(usr user.User, lifetime time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(lifetime).Unix(),
			IssuedAt:  now.Unix(),
		},
		ID: usr.ID,
	}
}

// GenerateToken generates a HS256 signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(raw, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, new(Claims), func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if vErr, ok := err.(*jwt.ValidationError); ok && vErr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, errTokenExpired
		}
		return nil, errInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID <= 0 {
		return nil, errInvalidToken
	}
	return claims, nil
}

// authMiddleware authenticates the bearer token and puts the active user in the context.
func authMiddleware(conf *core.Config, users user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) {
				return errNoCredentials
			}
			raw := strings.TrimSpace(header[len(bearerPrefix):])
			if raw == "" {
				return errNoCredentials
			}

			claims, err := parseToken(raw, conf.SecretKey)
			if err != nil {
				return err
			}
			usr, err := users.GetByID(ctx.Request().Context(), claims.ID)
			if err != nil {
				if core.IsNotFound(err) {
					return errUserNotFound
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.IsActive {
				return errUserInactive
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

// contextUser returns the authenticated user; the zero User outside of authMiddleware.
func contextUser(ctx echo.Context) user.User {
	usr, _ := ctx.Get(contextUserKey).(user.User)
	return usr
}
