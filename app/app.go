package app

import (
	"database/sql"

	"github.com/go-chi/oauth"

	"surveyvault/config"
)

type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config
}
