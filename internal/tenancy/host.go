package tenancy

import (
	"net"
	"strings"
)

// CorporateIDFromHost returns the subdomain label directly under rootDomain,
// so acme.benefits.example.com yields acme for root benefits.example.com.
// The root itself, www, bare localhost and IP hosts yield "".
func CorporateIDFromHost(host, rootDomain string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || net.ParseIP(strings.Trim(host, "[]")) != nil {
		return ""
	}

	root := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(rootDomain), "."))
	if root == "" || !strings.HasSuffix(host, "."+root) {
		return ""
	}
	sub := strings.TrimSuffix(host, "."+root)
	label := sub[strings.LastIndex(sub, ".")+1:]
	if label == "www" {
		return ""
	}
	return label
}
