// Package config loads runtime configuration for the shopsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the sync server gRPC endpoint
//	-f string   path of the local SQLite database
//	-i int      online status check interval (seconds)
//	-y int      periodic sync interval (seconds)
//	-o int      pull watermark overlap (milliseconds)
//	-t int      per-request timeout (seconds)
//
// # JSON schema
//
// Durations accept strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "database_path": "shopsync.db",
//	  "online_check_interval": "3s",
//	  "sync_interval": "30s",
//	  "watermark_overlap": "5s",
//	  "request_timeout": "10s"
//	}
package config
