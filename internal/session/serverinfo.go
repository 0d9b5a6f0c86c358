package session

import "encoding/json"

// ServerInfo describes the server, as sent in reply to GAMEINFO.
type ServerInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Provider    Provider `json:"provider"`
}

// Provider names who runs the server.
type Provider struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Website string `json:"website"`
}

// ParseServerInfo decodes a GAMEINFO payload.  Missing fields stay empty.
func ParseServerInfo(text string) (ServerInfo, error) {
	var info ServerInfo
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		return ServerInfo{}, err
	}
	return info, nil
}
