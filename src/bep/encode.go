package bep

import "google.golang.org/protobuf/encoding/protowire"

var idFieldsByKind = map[IDKind]protowire.Number{}

func init() {
	for num, kind := range idKindsByField {
		idFieldsByKind[kind] = num
	}
}

// Encode encodes a single build event. It's the inverse of Decode for the fields we understand.
func Encode(event *Event) []byte {
	var b []byte
	if event.ID.Kind != NoID {
		b = appendMessage(b, eventID, encodeID(event.ID))
	}
	for _, child := range event.Children {
		b = appendMessage(b, eventChildren, encodeID(child))
	}
	switch p := event.Payload.(type) {
	case *Progress:
		var m []byte
		m = appendString(m, 1, p.Stdout)
		m = appendString(m, 2, p.Stderr)
		b = appendMessage(b, eventProgress, m)
	case *Aborted:
		var m []byte
		m = appendVarint(m, 1, uint64(p.Reason))
		m = appendString(m, 2, p.Description)
		b = appendMessage(b, eventAborted, m)
	case *Started:
		var m []byte
		m = appendString(m, 1, p.UUID)
		m = appendString(m, 3, p.BuildToolVersion)
		m = appendString(m, 5, p.Command)
		m = appendString(m, 7, p.WorkspaceDirectory)
		b = appendMessage(b, eventStarted, m)
	case *OptionsParsed:
		var m []byte
		for _, s := range p.CmdLine {
			m = appendRepeatedString(m, 3, s)
		}
		for _, s := range p.ExplicitCmdLine {
			m = appendRepeatedString(m, 4, s)
		}
		b = appendMessage(b, eventOptions, m)
	case *Configured:
		var m []byte
		m = appendString(m, 1, p.TargetKind)
		for _, tag := range p.Tags {
			m = appendRepeatedString(m, 3, tag)
		}
		b = appendMessage(b, eventConfigured, m)
	case *Finished:
		var m []byte
		if p.ExitCode != nil {
			var ec []byte
			ec = appendString(ec, 1, p.ExitCode.Name)
			ec = appendVarint(ec, 2, uint64(p.ExitCode.Code))
			m = appendMessage(m, 3, ec)
		}
		b = appendMessage(b, eventFinished, m)
	}
	if event.LastMessage {
		b = appendVarint(b, eventLastMessage, 1)
	}
	return b
}

func encodeID(id ID) []byte {
	num, present := idFieldsByKind[id.Kind]
	if !present {
		return nil
	}
	var m []byte
	switch id.Kind {
	case UnknownID:
		m = appendString(m, 1, id.Details)
	case PatternID, PatternSkippedID:
		for _, pattern := range id.Patterns {
			m = appendRepeatedString(m, 1, pattern)
		}
	case TargetConfiguredID, TargetCompletedID:
		m = appendString(m, 1, id.Label)
		m = appendString(m, 2, id.Aspect)
	}
	return appendMessage(nil, num, m)
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

// appendString appends a singular string field, which is omitted when empty.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	return appendRepeatedString(b, num, s)
}

func appendRepeatedString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
