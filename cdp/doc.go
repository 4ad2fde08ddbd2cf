// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package cdp serves [inspector.Bridge] targets to Chrome DevTools Protocol
// clients, over websockets, with the usual HTTP discovery endpoints:
//
//	GET /json/version
//	GET /json/list
//	GET /devtools/page/<id>
//
// Each target owns one bridge, which outlives connections. A target serves
// one client at a time: a new connection closes the previous one, and is
// treated as a frontend reload if it is not the first. Every connection is
// assigned a fresh session id, and outbound messages are routed back to the
// connection with the matching id.
package cdp
