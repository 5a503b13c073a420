package testutil

import (
	"net"
	"net/url"
	"os"
)

// ExternalServer is a PostgreSQL server supplied through the environment in
// place of a test container.
type ExternalServer struct {
	URL string
}

// LookupExternalServer reads DATABASE_URL, or assembles a URL from
// DATABASE_HOST and the other DATABASE_* variables. The zero value means no
// server was configured.
func LookupExternalServer() ExternalServer {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return ExternalServer{URL: dsn}
	}
	host := os.Getenv("DATABASE_HOST")
	if host == "" {
		return ExternalServer{}
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.User(envOr("DATABASE_USER", "postgres")),
		Host:     net.JoinHostPort(host, envOr("DATABASE_PORT", "5432")),
		Path:     "/" + envOr("DATABASE_NAME", "postgres"),
		RawQuery: url.Values{"sslmode": {envOr("DATABASE_SSLMODE", "prefer")}}.Encode(),
	}
	if password := os.Getenv("DATABASE_PASSWORD"); password != "" {
		u.User = url.UserPassword(u.User.Username(), password)
	}
	return ExternalServer{URL: u.String()}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
