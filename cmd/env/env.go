package env

const (
	// Prefix is the prefix of every environment variable read by the commands.
	// ff appends the separating underscore to flag-backed variables
	Prefix = "IBKRRATES"

	// DBURLSuffix is the suffix of the Postgres connection string variable
	DBURLSuffix = "_DB_URL"
)
