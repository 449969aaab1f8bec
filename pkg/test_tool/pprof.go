package testtool

import (
	"net/http"
	_ "net/http/pprof" // registers the /debug/pprof endpoints

	"campus_chat_service/pkg/config"
	"campus_chat_service/pkg/logger"
)

// StartPprof serve pprof on :6060 outside production
func StartPprof() {
	if config.IsProduction() {
		logger.Log.Info("production environment detected, pprof is disabled")
		return
	}

	go func() {
		logger.Log.Info("starting pprof server on :6060")
		if err := http.ListenAndServe("127.0.0.1:6060", nil); err != nil {
			logger.Log.Infof("pprof server failed: ", err)
		}
	}()
}
