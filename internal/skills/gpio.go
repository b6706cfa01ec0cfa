package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var validBCMPins = map[uint8]bool{}

func init() {
	for p := uint8(2); p <= 27; p++ {
		validBCMPins[p] = true
	}
}

// PinDirection is a GPIO pin's configured direction.
type PinDirection string

const (
	DirectionInput  PinDirection = "in"
	DirectionOutput PinDirection = "out"
)

func parseDirection(s string) (PinDirection, bool) {
	switch s {
	case "in", "input":
		return DirectionInput, true
	case "out", "output":
		return DirectionOutput, true
	default:
		return "", false
	}
}

// pinState tracks one pin's last known direction/value, real or
// simulated.
type pinState struct {
	Pin       uint8
	Direction PinDirection
	Value     uint8
	Exported  bool
}

// GPIO controls Raspberry-Pi-style GPIO pins over sysfs, falling back to
// an in-memory simulation when sysfs is unavailable (e.g. in CI or on a
// non-Pi host).
type GPIO struct {
	allowedPins   []uint8
	pinStates     map[uint8]*pinState
	sysfsBase     string
	gpioAvailable bool
	gpioOffset    uint32
}

// NewGPIO builds the skill restricted to the given allowed BCM pins.
func NewGPIO(allowedPins []uint8, sysfsBase string) *GPIO {
	if sysfsBase == "" {
		sysfsBase = "/sys/class/gpio"
	}
	return &GPIO{
		allowedPins: allowedPins,
		pinStates:   make(map[uint8]*pinState),
		sysfsBase:   sysfsBase,
		gpioOffset:  detectGPIOOffset(sysfsBase),
	}
}

// detectGPIOOffset inspects gpiochipN entries to find the base offset
// used by this board's sysfs GPIO numbering (Pi 1/2: 512, Pi 3/4: 0, Pi
// 5: 571).
func detectGPIOOffset(sysfsBase string) uint32 {
	entries, err := os.ReadDir(sysfsBase)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "gpiochip") {
			continue
		}
		if n, err := strconv.ParseUint(strings.TrimPrefix(name, "gpiochip"), 10, 32); err == nil && n > 0 {
			return uint32(n)
		}
	}
	return 0
}

func (g *GPIO) isAllowed(pin uint8) bool {
	if !validBCMPins[pin] {
		return false
	}
	for _, p := range g.allowedPins {
		if p == pin {
			return true
		}
	}
	return false
}

func (g *GPIO) sysfsPinNum(pin uint8) uint32 { return g.gpioOffset + uint32(pin) }

func (g *GPIO) pinDir(pin uint8) string {
	return filepath.Join(g.sysfsBase, fmt.Sprintf("gpio%d", g.sysfsPinNum(pin)))
}

func (g *GPIO) exportPin(pin uint8) error {
	if !g.isAllowed(pin) {
		return fmt.Errorf("gpio: pin %d is not in the allowed list", pin)
	}
	pinPath := g.pinDir(pin)
	if _, err := os.Stat(pinPath); os.IsNotExist(err) {
		if err := os.WriteFile(filepath.Join(g.sysfsBase, "export"), []byte(strconv.FormatUint(uint64(g.sysfsPinNum(pin)), 10)), 0644); err != nil {
			return err
		}
	}
	g.pinStates[pin] = &pinState{Pin: pin, Direction: DirectionInput, Value: 0, Exported: true}
	return nil
}

func (g *GPIO) writePinSysfs(pin uint8, value uint8) error {
	if !g.isAllowed(pin) {
		return fmt.Errorf("gpio: pin %d is not allowed", pin)
	}
	path := filepath.Join(g.pinDir(pin), "value")
	return os.WriteFile(path, []byte(strconv.Itoa(int(value))), 0644)
}

func (g *GPIO) readPinSysfs(pin uint8) (uint8, error) {
	if !g.isAllowed(pin) {
		return 0, fmt.Errorf("gpio: pin %d is not allowed", pin)
	}
	path := filepath.Join(g.pinDir(pin), "value")
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 8)
	if err != nil {
		return 0, nil
	}
	if v != 0 {
		return 1, nil
	}
	return 0, nil
}

func (g *GPIO) setDirectionSysfs(pin uint8, dir PinDirection) error {
	if !g.isAllowed(pin) {
		return fmt.Errorf("gpio: pin %d is not allowed", pin)
	}
	return os.WriteFile(filepath.Join(g.pinDir(pin), "direction"), []byte(dir), 0644)
}

func (g *GPIO) unexportPin(pin uint8) error {
	return os.WriteFile(filepath.Join(g.sysfsBase, "unexport"), []byte(strconv.FormatUint(uint64(g.sysfsPinNum(pin)), 10)), 0644)
}

// Name implements Skill.
func (g *GPIO) Name() string { return "gpio" }

// Capabilities implements Skill.
func (g *GPIO) Capabilities() []string {
	return []string{"gpio.read", "gpio.write", "gpio.mode", "gpio.pwm", "gpio.watch"}
}

// Init implements Skill. Missing sysfs is not an error: the skill falls
// back to simulation mode.
func (g *GPIO) Init(ctx context.Context) error {
	if _, err := os.Stat(g.sysfsBase); err != nil {
		g.gpioAvailable = false
		return nil
	}
	g.gpioAvailable = true
	for _, pin := range g.allowedPins {
		_ = g.exportPin(pin)
	}
	return nil
}

func pinFromPayload(payload json.RawMessage) (uint8, error) {
	var req struct {
		Pin *int `json:"pin"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.Pin == nil {
		return 0, fmt.Errorf("gpio: missing pin")
	}
	return uint8(*req.Pin), nil
}

// Handle implements Skill. Supported commands: read, write, mode,
// status.
func (g *GPIO) Handle(ctx context.Context, command string, payload json.RawMessage) (json.RawMessage, error) {
	switch command {
	case "read":
		pin, err := pinFromPayload(payload)
		if err != nil {
			return nil, err
		}
		if !g.gpioAvailable {
			var v uint8
			if s, ok := g.pinStates[pin]; ok {
				v = s.Value
			}
			return json.Marshal(map[string]interface{}{"pin": pin, "value": v, "simulated": true})
		}
		v, err := g.readPinSysfs(pin)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"pin": pin, "value": v})

	case "write":
		var req struct {
			Pin   *int `json:"pin"`
			Value *int `json:"value"`
		}
		if err := json.Unmarshal(payload, &req); err != nil || req.Pin == nil || req.Value == nil {
			return nil, fmt.Errorf("gpio: missing pin or value")
		}
		pin, value := uint8(*req.Pin), uint8(*req.Value)
		if value != 0 {
			value = 1
		}
		if !g.gpioAvailable {
			if !g.isAllowed(pin) {
				return nil, fmt.Errorf("gpio: pin %d is not allowed", pin)
			}
			if s, ok := g.pinStates[pin]; ok {
				s.Value = value
			} else {
				g.pinStates[pin] = &pinState{Pin: pin, Direction: DirectionOutput, Value: value}
			}
			return json.Marshal(map[string]interface{}{"pin": pin, "value": value, "status": "ok", "simulated": true})
		}
		if err := g.writePinSysfs(pin, value); err != nil {
			return nil, err
		}
		if s, ok := g.pinStates[pin]; ok {
			s.Value = value
		}
		return json.Marshal(map[string]interface{}{"pin": pin, "value": value, "status": "ok"})

	case "mode":
		var req struct {
			Pin       *int   `json:"pin"`
			Direction string `json:"direction"`
		}
		if err := json.Unmarshal(payload, &req); err != nil || req.Pin == nil {
			return nil, fmt.Errorf("gpio: missing pin or direction")
		}
		dir, ok := parseDirection(req.Direction)
		if !ok {
			return nil, fmt.Errorf("gpio: invalid direction (use 'input' or 'output')")
		}
		pin := uint8(*req.Pin)
		if !g.gpioAvailable {
			if s, ok := g.pinStates[pin]; ok {
				s.Direction = dir
			} else if g.isAllowed(pin) {
				g.pinStates[pin] = &pinState{Pin: pin, Direction: dir}
			}
			return json.Marshal(map[string]interface{}{"pin": pin, "direction": req.Direction, "simulated": true})
		}
		if err := g.setDirectionSysfs(pin, dir); err != nil {
			return nil, err
		}
		if s, ok := g.pinStates[pin]; ok {
			s.Direction = dir
		}
		return json.Marshal(map[string]interface{}{"pin": pin, "direction": req.Direction})

	case "status":
		states := make([]map[string]interface{}, 0, len(g.pinStates))
		for _, s := range g.pinStates {
			states = append(states, map[string]interface{}{
				"pin": s.Pin, "direction": s.Direction, "value": s.Value, "exported": s.Exported,
			})
		}
		return json.Marshal(map[string]interface{}{"pins": states, "gpio_available": g.gpioAvailable})

	default:
		return nil, fmt.Errorf("gpio: unknown command %q", command)
	}
}

// Tick implements Skill. GPIO has no periodic work of its own.
func (g *GPIO) Tick(ctx context.Context) ([]*Report, error) { return nil, nil }

// TickIntervalSecs implements Skill.
func (g *GPIO) TickIntervalSecs() uint64 { return 0 }

// Shutdown implements Skill, unexporting every pin exported during Init.
func (g *GPIO) Shutdown(ctx context.Context) {
	if !g.gpioAvailable {
		return
	}
	for pin, s := range g.pinStates {
		if !s.Exported {
			continue
		}
		if err := g.unexportPin(pin); err != nil {
			continue
		}
		s.Exported = false
	}
}
