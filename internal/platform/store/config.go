package store

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG  PGConfig
	Bus BusConfig
	CH  CHConfig
}

// PGConfig configures postgres connectivity and tracing.
// MinConns/MaxConns map to MIN_DB_CONNECTIONS / MAX_DB_CONNECTIONS
type PGConfig struct {
	Enabled     bool
	URL         string
	MinConns    int32
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int
}

// BusConfig configures the redis event bus (BUS_URL)
type BusConfig struct {
	Enabled bool
	URL     string
}

// CHConfig configures the optional clickhouse audit sink
type CHConfig struct {
	Enabled   bool
	URL       string
	ClientTag string
}
