package user_services

// Logger is the logging contract of the account services.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// masked keeps the first four characters of a username for logs.
func masked(username string) string {
	return username[:min(4, len(username))] + "****"
}
