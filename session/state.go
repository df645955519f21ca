package session

// State is a stage of a scan session.
type State int

const (
	Initializing State = iota
	Provisioning
	AwaitingReady
	Bootstrapping
	Uploading
	Scanning
	Downloading
	Normalizing
	Persisting
	Cleanup
	Terminated
	Failed
)

var stateNames = map[State]string{
	Initializing:  "Initializing",
	Provisioning:  "Provisioning",
	AwaitingReady: "AwaitingReady",
	Bootstrapping: "Bootstrapping",
	Uploading:     "Uploading",
	Scanning:      "Scanning",
	Downloading:   "Downloading",
	Normalizing:   "Normalizing",
	Persisting:    "Persisting",
	Cleanup:       "Cleanup",
	Terminated:    "Terminated",
	Failed:        "Failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}
