// Package security provides the network-level validators for Steenbok's
// safe fetcher.
//
// Three validators compose into the pre-request check:
//   - IP classification (ip.go): decides whether an address belongs to a
//     loopback, private, link-local, or otherwise reserved range.
//   - Domain allowlist (allowlist.go): decides whether a hostname matches
//     the configured exact/wildcard pattern set.
//   - Host validation (host.go): resolves a hostname and rejects it if any
//     resolved address is classified as disallowed.
//
// All validators are pure with respect to their configuration; only the
// host validator performs network I/O (DNS resolution).
package security
