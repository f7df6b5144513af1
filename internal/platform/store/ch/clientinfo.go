package ch

import (
	"os"
	"runtime"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// BuildClientInfo returns a ClientInfo describing this process.
// tag examples: "scheduler", "processor"
func BuildClientInfo(tag string) clickhouse.ClientInfo {
	host, _ := os.Hostname()

	type kv = struct{ Name, Version string }
	products := []kv{
		{Name: "chime", Version: safe(tag)},
		{Name: "go", Version: safe(runtime.Version())},
		{Name: "host", Version: safe(host)},
	}

	return clickhouse.ClientInfo{Products: products}
}

func safe(s string) string { return strings.TrimSpace(s) }
