package logging

import "go.uber.org/zap"

// GetSugaredLogger returns a JSON logger in production and a console logger elsewhere.
func GetSugaredLogger(environment string) *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)
	if environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic("cannot initialize zap")
	}

	return logger.Sugar()
}
