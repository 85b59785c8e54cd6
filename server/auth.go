package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/omerotools/omero"
)

// authConfig is the [auth] section of the TOML configuration.
type authConfig struct {
	AuthFile  string `toml:"auth_file"`
	SecretKey string `toml:"secret_key"`
}

// Privileges of users in the authorization file.
const (
	PrivRead      = "read"
	PrivWrite     = "write"
	PrivReadWrite = "readwrite"
)

// authorizer checks JSON Web Tokens against an authorization file mapping
// user names to privileges.  The user "*" gives the privilege of unlisted users.
type authorizer struct {
	secret []byte
	users  map[string]string
}

func newAuthorizer(cfg authConfig) (*authorizer, error) {
	if cfg.SecretKey == "" {
		if cfg.AuthFile != "" {
			return nil, fmt.Errorf("auth file %q given without a secret key", cfg.AuthFile)
		}
		omero.Infof("No secret key found.  Proceeding without authorization.\n")
		return nil, nil
	}
	a := &authorizer{secret: []byte(cfg.SecretKey)}
	if cfg.AuthFile == "" {
		omero.Infof("No authorization file found.  Any user with a valid token has full access.\n")
		a.users = map[string]string{"*": PrivReadWrite}
		return a, nil
	}
	data, err := os.ReadFile(cfg.AuthFile)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &a.users); err != nil {
		return nil, fmt.Errorf("bad authorization file %q: %v", cfg.AuthFile, err)
	}
	return a, nil
}

// GenerateJWT returns a token for the user signed with the secret key.
func GenerateJWT(secretKey, user string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user": user,
		"iat":  time.Now().Unix(),
	})
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("error with JWT signing: %v", err)
	}
	return tokenString, nil
}

// parse validates a token and returns its user.
func (a *authorizer) parse(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("error signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("error parsing JWT: %v", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("failed authorization")
	}
	user, ok := claims["user"].(string)
	if !ok || user == "" {
		return "", fmt.Errorf("user %v is not a simple string", claims["user"])
	}
	return user, nil
}

// isAuthorized returns true if the user has the privilege for the HTTP method.
func (a *authorizer) isAuthorized(user, httpMethod string) bool {
	if len(a.users) == 0 {
		return false
	}
	method := strings.ToLower(httpMethod)
	readReq := method == "get" || method == "head"
	priv, found := a.users[user]
	if !found {
		if priv, found = a.users["*"]; !found {
			return false
		}
	}
	switch priv {
	case PrivReadWrite:
		return true
	case PrivRead:
		return readReq
	case PrivWrite:
		return !readReq
	default:
		omero.Errorf("Authorized user %q has unparsable privilege %q\n", user, priv)
		return false
	}
}

// middleware validates the bearer token of each request and sets c.Env["user"]
// to the authenticated user.
func (a *authorizer) middleware(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		reqToken := r.Header.Get("Authorization")
		if len(reqToken) == 0 {
			Unauthorized(w, r, "JWT required via Authorization in request header")
			return
		}
		splitToken := strings.Split(reqToken, "Bearer")
		if len(splitToken) != 2 || strings.TrimSpace(splitToken[1]) == "" {
			Unauthorized(w, r, "bearer not in proper format")
			return
		}
		user, err := a.parse(strings.TrimSpace(splitToken[1]))
		if err != nil {
			Unauthorized(w, r, "%v", err)
			return
		}
		if !a.isAuthorized(user, r.Method) {
			Forbidden(w, r, "user %q is not authorized", user)
			return
		}
		if c.Env == nil {
			c.Env = make(map[interface{}]interface{})
		}
		c.Env["user"] = user
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}
