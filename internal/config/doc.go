// Package config loads atomctl configuration.
//
// The configuration lives in atomctl.yaml (or atomctl.json) next to the
// scenario files. Every field is optional.
//
// # Configuration File Structure
//
//	serve:
//	  addr: ":7070"
//	  writeTimeout: 10s
//	log:
//	  level: info        # debug, info, warn, error
//	  format: text       # text or json
//	store:
//	  primitiveEviction: false
//	  queueSize: 256
//	metrics:
//	  enabled: true
//	  namespace: atomctl
//	tracing:
//	  enabled: false
//	  tracerName: atomctl
//
// The environment variables ATOMCTL_ADDR and ATOMCTL_LOG_LEVEL override
// serve.addr and log.level.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger := cfg.Logger(os.Stderr)
package config
