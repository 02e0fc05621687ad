package store

import (
	"net"
	"net/url"
	"strconv"
)

const DefaultPostgresPort = 5432

// PostgresConnString builds a postgres:// URL from discrete connection
// parameters, escaping user, password and database name.
func PostgresConnString(host string, port int, user, password, database string) string {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = DefaultPostgresPort
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + database,
	}

	switch {
	case user != "" && password != "":
		u.User = url.UserPassword(user, password)
	case user != "":
		u.User = url.User(user)
	}

	return u.String()
}
