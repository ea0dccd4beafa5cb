package datastore

import (
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/lifer/internal/errors"
)

// DefaultMySQLTimeout bounds dialing and each read or write on the connection.
const DefaultMySQLTimeout = 10 * time.Second

// MySQLConfig describes a MySQL server holding the life-list tables.
type MySQLConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// DSN formats the connection string. Credentials are escaped by the driver.
func (c MySQLConfig) DSN() string {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultMySQLTimeout
	}
	port := c.Port
	if port == "" {
		port = "3306"
	}
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Timeout = timeout
	cfg.ReadTimeout = timeout
	cfg.WriteTimeout = timeout
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// OpenMySQL connects to a MySQL server and migrates the schema.
func OpenMySQL(config MySQLConfig) (*Store, error) {
	if config.Host == "" || config.Database == "" {
		return nil, errors.Newf("mysql host and database are required").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("host", config.Host).
			Context("database", config.Database).
			Build()
	}

	db, err := gorm.Open(gormmysql.Open(config.DSN()), gormConfig())
	if err != nil {
		return nil, dbError(err, "open", "host", config.Host, "database", config.Database)
	}

	return newStore(db, "mysql", net.JoinHostPort(config.Host, config.Port)+"/"+config.Database)
}
