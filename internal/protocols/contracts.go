package protocols

import (
	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// contract pairs a command with its answer. Debug-only contracts are listed
// as unsupported in release tables.
type contract struct {
	command schema.CommandDef
	answer  schema.AnswerDef
	release bool
}

func getter(code ir.CommandCode, aliases []string, fields ...schema.AnswerFieldDef) *contract {
	return &contract{
		command: schema.CommandDef{Code: code, Aliases: aliases},
		answer:  schema.AnswerDef{Code: code, Fields: fields},
		release: true,
	}
}

func setter(code ir.CommandCode, aliases []string, param schema.ParamDef, fields ...schema.AnswerFieldDef) *contract {
	c := getter(code, aliases, fields...)
	c.command.Params = []schema.ParamDef{param}
	return c
}

func debugOnly(c *contract) *contract {
	c.release = false
	return c
}

func field(name ir.FieldName, ft schema.FieldType) schema.AnswerFieldDef {
	return schema.AnswerFieldDef{Name: name, Type: ft}
}

func param(name ir.FieldName, role schema.ParamRole, ft schema.FieldType) schema.ParamDef {
	return schema.ParamDef{Name: name, Role: role, Type: ft}
}

// layer is the set of contracts one protocol version adds or replaces for a
// device, in declaration order.
type layer struct {
	codes     []ir.CommandCode
	contracts map[ir.CommandCode]*contract
}

func (l *layer) add(cs ...*contract) {
	if l.contracts == nil {
		l.contracts = make(map[ir.CommandCode]*contract)
	}
	for _, c := range cs {
		if _, ok := l.contracts[c.command.Code]; !ok {
			l.codes = append(l.codes, c.command.Code)
		}
		l.contracts[c.command.Code] = c
	}
}

// v1Layer returns the contracts of protocol v1.0.0.
func v1Layer(d schema.DeviceType) layer {
	ft := newFieldTypes(ConstsFor(d))
	fFreq := field(FieldFrequency, ft.frequency)
	fGain := field(FieldGain, ft.gain)
	fSWF := field(FieldSWF, ft.swf)
	fSignal := field(FieldSignal, ft.signal)
	fTemp := field(FieldTemperature, ft.temperature)
	fMessage := field(FieldMessage, ft.text)
	fTimestamp := field(FieldTimestamp, ft.timestamp)
	fWaveform := field(FieldWaveform, ft.waveform)

	getProtocol := getter(GetProtocol, []string{"?protocol"},
		field(FieldDeviceType, ft.deviceType),
		field(FieldProtocolVersion, ft.version),
		field(FieldIsRelease, ft.buildType),
		field(FieldAdditionalOptions, ft.text),
	)

	var l layer
	if d == schema.DeviceUnknown {
		l.add(getProtocol)
		return l
	}

	switch d {
	case schema.DeviceMVPWorker:
		l.add(
			getter(GetUpdate, []string{"-", "get_update"},
				field(FieldErrorCode, ft.errorCode),
				fFreq,
				fGain,
				field(FieldProcedure, ft.procedure),
				fTemp,
				field(FieldURMS, ft.urms),
				field(FieldIRMS, ft.irms),
				field(FieldPhase, ft.phase),
				fSignal,
				field(FieldTSFlag, ft.tsFlag),
			),
			setter(SetFreq, []string{"!f", "!freq", "!frequency", "set_frequency"},
				param(FieldFrequency, schema.RoleSetter, ft.frequency), fFreq),
			getter(GetFreq, []string{"?f", "?freq", "?frequency", "get_frequency"}, fFreq),
			getter(GetATF, []string{"?atf"}, field(FieldATF, ft.frequency)),
			&contract{
				command: schema.CommandDef{Code: SetATF, Aliases: []string{"!atf"}, Params: []schema.ParamDef{
					param(FieldIndex, schema.RoleIndex, ft.index),
					param(FieldATF, schema.RoleSetter, ft.frequency),
				}},
				answer:  schema.AnswerDef{Code: SetATF, Fields: []schema.AnswerFieldDef{field(FieldATF, ft.frequency)}},
				release: true,
			},
			setter(SetWaveform, []string{"!waveform", "set_waveform"},
				param(FieldWaveform, schema.RoleSetter, ft.waveform), fWaveform),
			getter(GetWaveform, []string{"?waveform", "get_waveform"}, fWaveform),
			debugOnly(getter(GetUIPT, []string{"?uipt"},
				field(FieldURMS, ft.urms),
				field(FieldIRMS, ft.irms),
				field(FieldPhase, ft.phase),
			)),
			debugOnly(getter(GetIRMS, []string{"?curr", "?irms"}, field(FieldIRMS, ft.irms))),
		)
	case schema.DeviceDescale:
		l.add(
			getter(GetUpdate, []string{"-", "get_update"},
				field(FieldErrorCode, ft.errorCode),
				fSWF,
				fGain,
				field(FieldProcedure, ft.procedure),
				fTemp,
				field(FieldIRMS, ft.irms),
				fSignal,
			),
			debugOnly(setter(SetSWF, []string{"!swf", "set_switching_frequency"},
				param(FieldSWF, schema.RoleSetter, ft.swf), fSWF)),
			debugOnly(getter(GetSWF, []string{"?swf", "get_switching_frequency"}, fSWF)),
		)
	}

	l.add(
		getProtocol,
		getter(GetInfo, []string{"?info"},
			field(FieldDeviceType, ft.deviceType),
			field(FieldHardwareVersion, ft.version),
			field(FieldFirmwareVersion, ft.version),
			field(FieldBuildHash, ft.text),
			field(FieldBuildDate, ft.text),
		),
		getter(GetHelp, []string{"?help"}, fMessage),
		getter(GetTransducerID, []string{"?transducer", "?tdr", "?transducer_id", "?tdr_id"},
			field(FieldTransducerID, ft.text)),
		setter(SetGain, []string{"!g", "!gain", "set_gain"}, param(FieldGain, schema.RoleSetter, ft.gain), fGain),
		getter(GetGain, []string{"?g", "?gain", "get_gain"}, fGain),
		getter(SetOn, []string{"!ON", "set_on"}, fSignal),
		getter(SetOff, []string{"!OFF", "set_off"}, fSignal),
		getter(GetTemp, []string{"?temp", "?temperature", "get_temperature"}, fTemp),
		setter(SetDatetime, []string{"!datetime", "set_datetime"},
			param(FieldTimestamp, schema.RoleSetter, ft.timestamp), fTimestamp),
		getter(GetDatetime, []string{"?datetime", "get_datetime"}, fTimestamp),
		&contract{
			command: schema.CommandDef{Code: SetLogLevel, Aliases: []string{"!log_level", "set_log_level"}, Params: []schema.ParamDef{
				param(FieldLogger, schema.RoleIndex, ft.logger),
				param(FieldLogLevel, schema.RoleSetter, ft.logLevel),
			}},
			answer: schema.AnswerDef{Code: SetLogLevel, Fields: []schema.AnswerFieldDef{
				field(FieldLogger, ft.logger),
				field(FieldLogLevel, ft.logLevel),
			}},
			release: true,
		},
		&contract{
			command: schema.CommandDef{Code: GetLogLevel, Aliases: []string{"?log_level", "get_log_level"}, Params: []schema.ParamDef{
				param(FieldLogger, schema.RoleIndex, ft.logger),
			}},
			answer: schema.AnswerDef{Code: GetLogLevel, Fields: []schema.AnswerFieldDef{
				field(FieldLogger, ft.logger),
				field(FieldLogLevel, ft.logLevel),
			}},
			release: true,
		},
		getter(SetDefault, []string{"!default", "set_default"}, field(FieldSuccess, ft.text)),
	)
	return l
}

// v2Layer returns the contracts protocol v2.0.0 adds on top of v1.0.0.
func v2Layer(d schema.DeviceType) layer {
	ft := newFieldTypes(ConstsFor(d))
	fSuccess := field(FieldSuccess, ft.text)

	var l layer
	if d == schema.DeviceUnknown {
		return l
	}
	l.add(
		getter(ClearErrors, []string{"!clear_errors", "clear_errors"}, fSuccess),
		getter(RestartDevice, []string{"!restart", "restart_device"}, fSuccess),
	)
	if d == schema.DeviceDescale {
		l.add(debugOnly(getter(GetADC, []string{"?adc", "get_adc"}, field(FieldMessage, ft.text))))
	}
	return l
}

// answerOnly returns the answers that are not replies to a command:
// device notifications and the error catalogue.
func answerOnly() []schema.AnswerDef {
	text := schema.StringType(schema.FieldLimits[string]{})
	out := []schema.AnswerDef{{Code: NotifyMessage, Fields: []schema.AnswerFieldDef{field(FieldMessage, text)}}}
	for _, code := range errorCodes {
		out = append(out, schema.AnswerDef{Code: code, Fields: []schema.AnswerFieldDef{field(FieldErrorMessage, text)}})
	}
	return out
}
