package serialport

import (
	"github.com/rs/zerolog/log"
	bugst "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// ListPorts returns the serial ports present on the system.
// USB details are filled in when the platform enumerator provides them.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil && len(details) > 0 {
		ports := make([]PortInfo, 0, len(details))
		for _, d := range details {
			ports = append(ports, PortInfo{
				Name:         d.Name,
				IsUSB:        d.IsUSB,
				VID:          d.VID,
				PID:          d.PID,
				SerialNumber: d.SerialNumber,
				Product:      d.Product,
			})
		}
		return ports, nil
	}
	if err != nil {
		log.Debug().Err(err).Msg("Detailed port enumeration failed, using plain list")
	}

	names, err := bugst.GetPortsList()
	if err != nil {
		return nil, err
	}
	ports := make([]PortInfo, 0, len(names))
	for _, name := range names {
		ports = append(ports, PortInfo{Name: name})
	}
	return ports, nil
}
