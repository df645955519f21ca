package scan

// service names for ports that commonly show up in scan results
var knownPorts = map[int]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "domain",
	80:    "http",
	110:   "pop3",
	111:   "sunrpc",
	123:   "ntp",
	143:   "imap",
	161:   "snmp",
	443:   "https",
	445:   "microsoft-ds",
	465:   "submissions",
	587:   "submission",
	993:   "imaps",
	995:   "pop3s",
	1194:  "openvpn",
	1433:  "ms-sql-s",
	2049:  "nfs",
	2375:  "docker",
	3306:  "mysql",
	3389:  "ms-wbt-server",
	5432:  "postgresql",
	5672:  "amqp",
	6379:  "redis",
	6443:  "kubernetes",
	8080:  "http-alt",
	8443:  "https-alt",
	9090:  "websm",
	9200:  "elasticsearch",
	11211: "memcache",
	27017: "mongodb",
}

func DescribePort(port int) string {
	if s, ok := knownPorts[port]; ok {
		return s
	}

	return ""
}
