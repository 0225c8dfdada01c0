package netutil

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// SelectBindAddr picks an available bind address based on preferred and fallback list.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		ok, err := IsAddrAvailable(preferred)
		if err != nil {
			return "", err
		}
		if ok {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("preferred dashboard bind address in use: %s", preferred)
		}
	}

	for _, addr := range candidates {
		if addr == preferred {
			continue
		}
		ok, err := IsAddrAvailable(addr)
		if err != nil {
			return "", err
		}
		if ok {
			return addr, nil
		}
	}

	return "", errors.New("no available dashboard bind addresses")
}

// IsAddrAvailable returns true when an address can be listened on.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}

// SplitAddrs parses a comma-separated address list, dropping blanks.
func SplitAddrs(csv string) []string {
	var out []string
	for _, a := range strings.Split(csv, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
