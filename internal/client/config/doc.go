// Package config loads runtime configuration for the stableftp client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// The bearer token is the exception: when neither the JSON file nor -token
// sets it, ResolveToken falls back to the STABLE_FTP_TOKEN environment
// variable and then to an interactive prompt.
//
// Supported flags
//
//	-a string   host:port of the server
//	-f string   file to upload
//	-token      bearer token
//	-p int      packet size in bytes
//	-t int      dial timeout (seconds)
//	-r int      response timeout (seconds)
//
// # JSON schema
//
//	{
//	  "server_address": "127.0.0.1:7878",
//	  "file": "/data/movie.mkv",
//	  "token": "…",
//	  "packet_size": 65536,
//	  "dial_timeout": "5s",
//	  "response_timeout": "30s"
//	}
package config
