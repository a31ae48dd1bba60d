package protocols

import (
	"fmt"
	"strconv"

	"github.com/usepat/SW-soniccontrol/internal/ir"
)

// Command codes. Getters live below 1000, setters from 1000, device-initiated
// notifications from 18000 and errors from ir.ErrorCodeBase.
const (
	GetProtocol     ir.CommandCode = 0
	GetInfo         ir.CommandCode = 1
	GetHelp         ir.CommandCode = 2
	GetUpdate       ir.CommandCode = 3
	GetSWF          ir.CommandCode = 10
	GetFreq         ir.CommandCode = 20
	GetGain         ir.CommandCode = 30
	GetTemp         ir.CommandCode = 50
	GetUIPT         ir.CommandCode = 70
	GetIRMS         ir.CommandCode = 80
	GetTransducerID ir.CommandCode = 90
	GetATF          ir.CommandCode = 101
	GetDatetime     ir.CommandCode = 130
	GetWaveform     ir.CommandCode = 140
	GetLogLevel     ir.CommandCode = 150
	GetADC          ir.CommandCode = 360

	SetSWF      ir.CommandCode = 1010
	SetFreq     ir.CommandCode = 1020
	SetGain     ir.CommandCode = 1030
	SetOff      ir.CommandCode = 1040
	SetOn       ir.CommandCode = 1041
	SetATF      ir.CommandCode = 1101
	SetDatetime ir.CommandCode = 1130
	SetWaveform ir.CommandCode = 1140
	SetLogLevel ir.CommandCode = 1150
	ClearErrors ir.CommandCode = 2040
	SetDefault  ir.CommandCode = 9000

	NotifyMessage ir.CommandCode = 18000
	RestartDevice ir.CommandCode = 19010
)

// Error answer codes.
const (
	ErrInternalDevice        ir.CommandCode = ir.ErrorCodeBase
	ErrCommandNotKnown       ir.CommandCode = 20001
	ErrCommandNotImplemented ir.CommandCode = 20002
	ErrCommandNotPermitted   ir.CommandCode = 20003
	ErrCommandInvalid        ir.CommandCode = 20004
	ErrSyntax                ir.CommandCode = 20005
	ErrInvalidValue          ir.CommandCode = 20006
	ErrParsing               ir.CommandCode = 20007
	ErrTimeout               ir.CommandCode = 20008
)

var codeNames = map[ir.CommandCode]string{
	GetProtocol:     "GET_PROTOCOL",
	GetInfo:         "GET_INFO",
	GetHelp:         "GET_HELP",
	GetUpdate:       "GET_UPDATE",
	GetSWF:          "GET_SWF",
	GetFreq:         "GET_FREQ",
	GetGain:         "GET_GAIN",
	GetTemp:         "GET_TEMP",
	GetUIPT:         "GET_UIPT",
	GetIRMS:         "GET_IRMS",
	GetTransducerID: "GET_TRANSDUCER_ID",
	GetATF:          "GET_ATF",
	GetDatetime:     "GET_DATETIME",
	GetWaveform:     "GET_WAVEFORM",
	GetLogLevel:     "GET_LOG_LEVEL",
	GetADC:          "GET_ADC",
	SetSWF:          "SET_SWF",
	SetFreq:         "SET_FREQ",
	SetGain:         "SET_GAIN",
	SetOff:          "SET_OFF",
	SetOn:           "SET_ON",
	SetATF:          "SET_ATF",
	SetDatetime:     "SET_DATETIME",
	SetWaveform:     "SET_WAVEFORM",
	SetLogLevel:     "SET_LOG_LEVEL",
	ClearErrors:     "CLEAR_ERRORS",
	SetDefault:      "SET_DEFAULT",
	NotifyMessage:   "NOTIFY_MESSAGE",
	RestartDevice:   "RESTART_DEVICE",

	ErrInternalDevice:        "E_INTERNAL_DEVICE_ERROR",
	ErrCommandNotKnown:       "E_COMMAND_NOT_KNOWN",
	ErrCommandNotImplemented: "E_COMMAND_NOT_IMPLEMENTED",
	ErrCommandNotPermitted:   "E_COMMAND_NOT_PERMITTED",
	ErrCommandInvalid:        "E_COMMAND_INVALID",
	ErrSyntax:                "E_SYNTAX_ERROR",
	ErrInvalidValue:          "E_INVALID_VALUE",
	ErrParsing:               "E_PARSING_ERROR",
	ErrTimeout:               "E_TIMEOUT_ERROR",
}

// errorCodes lists the error answers every table declares.
var errorCodes = []ir.CommandCode{
	ErrInternalDevice,
	ErrCommandNotKnown,
	ErrCommandNotImplemented,
	ErrCommandNotPermitted,
	ErrCommandInvalid,
	ErrSyntax,
	ErrInvalidValue,
	ErrParsing,
	ErrTimeout,
}

// CodeName returns the symbolic name of a known code, e.g. "SET_FREQ", or
// the decimal code for unknown ones.
func CodeName(code ir.CommandCode) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("%d", code)
}

// ParseCode resolves a symbolic name or a decimal code.
func ParseCode(s string) (ir.CommandCode, error) {
	for code, name := range codeNames {
		if name == s {
			return code, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown command code %q", s)
	}
	return ir.CommandCode(n), nil
}
