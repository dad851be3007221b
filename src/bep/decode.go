package bep

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/zachgrayio/bkvalidate/src/core"
)

// Field numbers within build_event_stream.BuildEvent.
const (
	eventID          protowire.Number = 1
	eventChildren    protowire.Number = 2
	eventProgress    protowire.Number = 3
	eventAborted     protowire.Number = 4
	eventStarted     protowire.Number = 5
	eventOptions     protowire.Number = 13
	eventFinished    protowire.Number = 14
	eventConfigured  protowire.Number = 19
	eventLastMessage protowire.Number = 20
)

// Field numbers of the oneof within build_event_stream.BuildEventId.
var idKindsByField = map[protowire.Number]IDKind{
	1:  UnknownID,
	2:  ProgressID,
	3:  StartedID,
	4:  PatternID,
	5:  TargetCompletedID,
	9:  BuildFinishedID,
	10: PatternSkippedID,
	12: OptionsParsedID,
	16: TargetConfiguredID,
}

// field is a single field of an encoded message.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

func (f field) String() string {
	return string(f.bytes)
}

// parseFields calls fn for each field in an encoded message, in order.
func parseFields(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// expect returns an error if a field we understand has an unexpected wire type.
func expect(f field, typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("field %d has wire type %d, expected %d", f.num, f.typ, typ)
	}
	return nil
}

// Decode decodes a single build event.
// Payloads we don't understand decode successfully to a nil Payload.
func Decode(b []byte) (*Event, error) {
	event := &Event{}
	if err := parseFields(b, func(f field) error {
		switch f.num {
		case eventLastMessage:
			if err := expect(f, protowire.VarintType); err != nil {
				return err
			}
			event.LastMessage = f.varint != 0
			return nil
		case eventID, eventChildren, eventProgress, eventAborted, eventStarted, eventOptions, eventFinished, eventConfigured:
			if err := expect(f, protowire.BytesType); err != nil {
				return err
			}
		default:
			return nil
		}
		switch f.num {
		case eventID:
			id, err := decodeID(f.bytes)
			event.ID = id
			return err
		case eventChildren:
			id, err := decodeID(f.bytes)
			event.Children = append(event.Children, id)
			return err
		case eventProgress:
			p, err := decodeProgress(f.bytes)
			event.Payload = p
			return err
		case eventAborted:
			p, err := decodeAborted(f.bytes)
			event.Payload = p
			return err
		case eventStarted:
			p, err := decodeStarted(f.bytes)
			event.Payload = p
			return err
		case eventOptions:
			p, err := decodeOptionsParsed(f.bytes)
			event.Payload = p
			return err
		case eventFinished:
			p, err := decodeFinished(f.bytes)
			event.Payload = p
			return err
		default: // eventConfigured
			p, err := decodeConfigured(f.bytes)
			event.Payload = p
			return err
		}
	}); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrMalformedEvent, err)
	}
	return event, nil
}

func decodeID(b []byte) (ID, error) {
	id := ID{}
	err := parseFields(b, func(f field) error {
		kind, present := idKindsByField[f.num]
		if !present {
			id.Kind = OtherID
			return nil
		} else if err := expect(f, protowire.BytesType); err != nil {
			return err
		}
		id.Kind = kind
		return parseFields(f.bytes, func(f field) error {
			if f.typ != protowire.BytesType {
				return nil
			}
			switch kind {
			case UnknownID:
				if f.num == 1 {
					id.Details = f.String()
				}
			case PatternID, PatternSkippedID:
				if f.num == 1 {
					id.Patterns = append(id.Patterns, f.String())
				}
			case TargetConfiguredID, TargetCompletedID:
				if f.num == 1 {
					id.Label = f.String()
				} else if f.num == 2 {
					id.Aspect = f.String()
				}
			}
			return nil
		})
	})
	return id, err
}

func decodeProgress(b []byte) (*Progress, error) {
	p := &Progress{}
	return p, parseFields(b, func(f field) error {
		switch f.num {
		case 1:
			p.Stdout = f.String()
		case 2:
			p.Stderr = f.String()
		}
		return nil
	})
}

func decodeAborted(b []byte) (*Aborted, error) {
	p := &Aborted{}
	return p, parseFields(b, func(f field) error {
		switch f.num {
		case 1:
			if err := expect(f, protowire.VarintType); err != nil {
				return err
			}
			p.Reason = AbortReason(int32(f.varint))
		case 2:
			p.Description = f.String()
		}
		return nil
	})
}

func decodeStarted(b []byte) (*Started, error) {
	p := &Started{}
	return p, parseFields(b, func(f field) error {
		switch f.num {
		case 1:
			p.UUID = f.String()
		case 3:
			p.BuildToolVersion = f.String()
		case 5:
			p.Command = f.String()
		case 7:
			p.WorkspaceDirectory = f.String()
		}
		return nil
	})
}

func decodeOptionsParsed(b []byte) (*OptionsParsed, error) {
	p := &OptionsParsed{}
	return p, parseFields(b, func(f field) error {
		switch f.num {
		case 3:
			p.CmdLine = append(p.CmdLine, f.String())
		case 4:
			p.ExplicitCmdLine = append(p.ExplicitCmdLine, f.String())
		}
		return nil
	})
}

func decodeConfigured(b []byte) (*Configured, error) {
	p := &Configured{}
	return p, parseFields(b, func(f field) error {
		switch f.num {
		case 1:
			p.TargetKind = f.String()
		case 3:
			p.Tags = append(p.Tags, f.String())
		}
		return nil
	})
}

func decodeFinished(b []byte) (*Finished, error) {
	p := &Finished{}
	return p, parseFields(b, func(f field) error {
		if f.num != 3 {
			return nil
		} else if err := expect(f, protowire.BytesType); err != nil {
			return err
		}
		p.ExitCode = &ExitCode{}
		return parseFields(f.bytes, func(f field) error {
			switch f.num {
			case 1:
				p.ExitCode.Name = f.String()
			case 2:
				p.ExitCode.Code = int32(f.varint)
			}
			return nil
		})
	})
}
