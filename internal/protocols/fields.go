package protocols

import (
	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// Field names shared by commands and answers.
const (
	FieldFrequency         ir.FieldName = "freq"
	FieldSWF               ir.FieldName = "swf"
	FieldGain              ir.FieldName = "gain"
	FieldTemperature       ir.FieldName = "temp"
	FieldSignal            ir.FieldName = "signal"
	FieldWaveform          ir.FieldName = "waveform"
	FieldURMS              ir.FieldName = "urms"
	FieldIRMS              ir.FieldName = "irms"
	FieldPhase             ir.FieldName = "phase"
	FieldTSFlag            ir.FieldName = "ts_flag"
	FieldProcedure         ir.FieldName = "procedure"
	FieldErrorCode         ir.FieldName = "error_code"
	FieldErrorMessage      ir.FieldName = "error_message"
	FieldMessage           ir.FieldName = "message"
	FieldSuccess           ir.FieldName = "success"
	FieldATF               ir.FieldName = "atf"
	FieldIndex             ir.FieldName = "index"
	FieldTransducerID      ir.FieldName = "transducer_id"
	FieldDeviceType        ir.FieldName = "device_type"
	FieldProtocolVersion   ir.FieldName = "protocol_version"
	FieldIsRelease         ir.FieldName = "is_release"
	FieldAdditionalOptions ir.FieldName = "additional_options"
	FieldHardwareVersion   ir.FieldName = "hardware_version"
	FieldFirmwareVersion   ir.FieldName = "firmware_version"
	FieldBuildHash         ir.FieldName = "build_hash"
	FieldBuildDate         ir.FieldName = "build_date"
	FieldTimestamp         ir.FieldName = "timestamp"
	FieldLogLevel          ir.FieldName = "log_level"
	FieldLogger            ir.FieldName = "logger"
)

// DeviceConsts are the per-device bounds materialized into field limits.
type DeviceConsts struct {
	MinFrequency       uint32
	MaxFrequency       uint32
	MinGain            uint8
	MaxGain            uint8
	MinSWF             uint8
	MaxSWF             uint8
	MinTransducerIndex uint8
	MaxTransducerIndex uint8
}

// DefaultConsts returns the bounds shared by all devices unless overridden.
func DefaultConsts() DeviceConsts {
	return DeviceConsts{
		MinFrequency:       100000,
		MaxFrequency:       10000000,
		MinGain:            0,
		MaxGain:            150,
		MinSWF:             0,
		MaxSWF:             15,
		MinTransducerIndex: 1,
		MaxTransducerIndex: 4,
	}
}

// ConstsFor returns the bounds of a device type.
func ConstsFor(d schema.DeviceType) DeviceConsts {
	c := DefaultConsts()
	if d == schema.DeviceDescale {
		c.MaxGain = 101
	}
	return c
}

// fieldTypes holds the field types of one device, built from its constants.
type fieldTypes struct {
	frequency   schema.FieldType
	gain        schema.FieldType
	swf         schema.FieldType
	index       schema.FieldType
	temperature schema.FieldType
	urms        schema.FieldType
	irms        schema.FieldType
	phase       schema.FieldType
	tsFlag      schema.FieldType
	signal      schema.FieldType
	waveform    schema.FieldType
	procedure   schema.FieldType
	logLevel    schema.FieldType
	logger      schema.FieldType
	deviceType  schema.FieldType
	version     schema.FieldType
	buildType   schema.FieldType
	timestamp   schema.FieldType
	errorCode   schema.FieldType
	text        schema.FieldType
}

func newFieldTypes(c DeviceConsts) fieldTypes {
	return fieldTypes{
		frequency: schema.Uint32Type(schema.Range(c.MinFrequency, c.MaxFrequency),
			schema.WithUnit(schema.UnitHertz, schema.PrefixNone)),
		gain: schema.Uint8Type(schema.Range(c.MinGain, c.MaxGain),
			schema.WithUnit(schema.UnitPercent, schema.PrefixNone)),
		swf:   schema.Uint8Type(schema.Range(c.MinSWF, c.MaxSWF)),
		index: schema.Uint8Type(schema.Range(c.MinTransducerIndex, c.MaxTransducerIndex)),
		// The upper bound is the surface of the sun in millikelvin.
		temperature: schema.Uint32Type(schema.Range[uint32](0, 6273150),
			schema.WithUnit(schema.UnitKelvin, schema.PrefixMilli)),
		urms:       schema.Uint32Type(schema.FieldLimits[uint32]{}, schema.WithUnit(schema.UnitVolt, schema.PrefixMicro)),
		irms:       schema.Uint32Type(schema.FieldLimits[uint32]{}, schema.WithUnit(schema.UnitAmpere, schema.PrefixMicro)),
		phase:      schema.Uint32Type(schema.FieldLimits[uint32]{}, schema.WithUnit(schema.UnitDegree, schema.PrefixMicro)),
		tsFlag:     schema.Uint32Type(schema.FieldLimits[uint32]{}, schema.WithUnit(schema.UnitVolt, schema.PrefixMicro)),
		signal:     schema.BoolType(schema.WithConverter(schema.ConvSignal)),
		waveform:   schema.EnumType(ir.TypeWaveform, schema.FieldLimits[int32]{}),
		procedure:  schema.EnumType(ir.TypeProcedure, schema.FieldLimits[int32]{}),
		logLevel:   schema.EnumType(ir.TypeLogLevel, schema.FieldLimits[int32]{}),
		logger:     schema.EnumType(ir.TypeLoggerName, schema.FieldLimits[int32]{}),
		deviceType: schema.EnumType(ir.TypeDeviceType, schema.FieldLimits[int32]{}),
		version:    schema.VersionType(schema.VersionLimits{}),
		buildType:  schema.BoolType(schema.WithConverter(schema.ConvBuildType)),
		timestamp:  schema.TimestampType(),
		errorCode:  schema.Uint16Type(schema.FieldLimits[uint16]{}),
		text:       schema.StringType(schema.FieldLimits[string]{}),
	}
}
