package mcp

// completeArgs are the php_complete arguments.
type completeArgs struct {
	Buffer string `json:"buffer"`
	Offset *int   `json:"offset,omitempty"`
}

// declarationsArgs are the php_declarations arguments.
type declarationsArgs struct {
	Name   string `json:"name,omitempty"`
	Buffer string `json:"buffer,omitempty"`
	Offset *int   `json:"offset,omitempty"`
}

// scanArgs are the php_scan arguments.
type scanArgs struct {
	Path string `json:"path,omitempty"`
	Wait bool   `json:"wait,omitempty"`
}

// clampOffset returns the cursor offset, defaulting to the end of buffer and
// clamped to its bounds.
func clampOffset(offset *int, buffer string) int {
	if offset == nil || *offset > len(buffer) {
		return len(buffer)
	}
	if *offset < 0 {
		return 0
	}
	return *offset
}
