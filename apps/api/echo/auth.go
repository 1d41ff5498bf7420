package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

const (
	contextTokenKey = "userToken"
	contextActorKey = "actor"
	contextUserKey  = "user"
	tokenAudience   = "Semindo"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

// GetUserClaims returns fresh claims for usr. origIat carries the original issue time across refreshes.
func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		Roles:        usr.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

type (
	permissionResolver interface {
		PermissionsFor(ctx context.Context, roles []string) ([]string, error)
	}

	authenticator struct {
		conf      *core.Config
		users     user.ServiceInterface
		perms     permissionResolver
		blacklist core.TokenBlacklist
		jwtConfig middleware.JWTConfig
	}
)

func newAuthenticator(conf *core.Config, users user.ServiceInterface, perms permissionResolver, blacklist core.TokenBlacklist) *authenticator {
	return &authenticator{
		conf:      conf,
		users:     users,
		perms:     perms,
		blacklist: blacklist,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

func (a *authenticator) jwtMiddleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(a.jwtConfig)
}

// optionalJWTMiddleware authenticates the request only when it carries an Authorization header.
func (a *authenticator) optionalJWTMiddleware() echo.MiddlewareFunc {
	cfg := a.jwtConfig
	cfg.Skipper = func(ctx echo.Context) bool {
		return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
	}
	return middleware.JWTWithConfig(cfg)
}

// actorMiddleware resolves the core.Actor of the request, rejecting revoked tokens.
// Requests without a token get an anonymous actor.
func (a *authenticator) actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor := core.Actor{}
		if claims, err := getContextClaims(ctx); err == nil {
			revoked, err := a.blacklist.IsRevoked(ctx.Request().Context(), claims.Id)
			if err != nil {
				return errors.Wrap(err, "checking token blacklist")
			}
			if revoked {
				return errTokenRevoked
			}
			perms, err := a.perms.PermissionsFor(ctx.Request().Context(), claims.Roles)
			if err != nil {
				return errors.Wrap(err, "resolving permissions")
			}
			actor = core.NewActor(claims.Subject, claims.Roles, perms)
		}
		actor.IP = ctx.RealIP()

		ctx.Set(contextActorKey, actor)
		req := ctx.Request()
		ctx.SetRequest(req.WithContext(core.ContextWithActor(req.Context(), actor)))
		return next(ctx)
	}
}

func (a *authenticator) authenticate(ctx context.Context, uname, pwd string) (*Claims, error) {
	usr, err := a.users.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.Active() {
		return nil, errAccountDeactivated
	}
	usr, err = a.users.SetLastLogin(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetUserClaims(a.conf, usr), nil
}

// refreshToken issues a new token for the context user and revokes the current one.
func (a *authenticator) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, a.users)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	if !usr.Active() {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := GenerateToken(a.conf, GetUserClaims(a.conf, usr, claims.OrigIssuedAt))
	if err != nil {
		return "", errors.Wrap(err, "generating token")
	}
	if err = a.revoke(ctx.Request().Context(), claims); err != nil {
		return "", err
	}
	return token, nil
}

// revoke blacklists the token for the rest of its lifetime.
func (a *authenticator) revoke(ctx context.Context, claims Claims) error {
	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if ttl <= 0 {
		return nil
	}
	return errors.Wrap(a.blacklist.Revoke(ctx, claims.Id, ttl), "revoking token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getActor(ctx echo.Context) core.Actor {
	actor, _ := ctx.Get(contextActorKey).(core.Actor)
	return actor
}

func getContextUser(ctx echo.Context, svc user.ServiceInterface) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	actor := getActor(ctx)
	if actor.IsAnonymous() {
		return user.User{}, errUnauthorized
	}
	usr, err := svc.GetByID(ctx.Request().Context(), actor.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}
