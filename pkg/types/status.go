package types

import "github.com/NotCoffee418/humidity_monitor/pkg/port_reader"

type Status struct {
	Open   bool      `json:"open"`
	Device string    `json:"device,omitempty"`
	Driver string    `json:"driver,omitempty"`
	Exit   *ExitInfo `json:"last_exit,omitempty"`
}

// ExitInfo is how the last reader loop ended.
type ExitInfo struct {
	Reason   string `json:"reason"`
	Error    string `json:"error,omitempty"`
	Timeouts int    `json:"consecutive_timeouts"`
	Values   int    `json:"values_published"`
}

func ExitInfoFromStatus(status *port_reader.ExitStatus) *ExitInfo {
	if status == nil {
		return nil
	}
	info := &ExitInfo{
		Reason:   status.Reason.String(),
		Timeouts: status.Timeouts,
		Values:   status.Values,
	}
	if status.Err != nil {
		info.Error = status.Err.Error()
	}
	return info
}
