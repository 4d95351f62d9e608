package breakpad

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ParseTable parses a textual breakpad symbol file (spec.md §4.3).
// Malformed lines are recorded in Table.Warnings and skipped rather than
// aborting the parse; Table.Corrupt is set when the MODULE header is
// missing or fails to parse, since everything downstream depends on it
// for architecture resolution.
func ParseTable(data []byte) *Table {
	t := newTable()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var currentFunc *Func
	sawModule := false
	lineNo := 0

	warn := func(format string, args ...any) {
		t.Warnings = append(t.Warnings, fmt.Sprintf("line %d: %s", lineNo, fmt.Sprintf(format, args...)))
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimLeft(scanner.Text(), " \t")
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "MODULE":
			if len(fields) < 5 {
				warn("MODULE: want 4 fields, got %d", len(fields)-1)
				t.Corrupt = true
				continue
			}
			t.OS, t.Arch, t.DebugID = fields[1], fields[2], fields[3]
			t.DebugFile = strings.Join(fields[4:], " ")
			sawModule = true

		case "FILE":
			if len(fields) < 3 {
				warn("FILE: want 2 fields, got %d", len(fields)-1)
				continue
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				warn("FILE: bad id %q: %v", fields[1], err)
				continue
			}
			t.Files[id] = strings.Join(fields[2:], " ")

		case "INLINE_ORIGIN":
			if len(fields) < 3 {
				warn("INLINE_ORIGIN: want 2 fields, got %d", len(fields)-1)
				continue
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				warn("INLINE_ORIGIN: bad id %q: %v", fields[1], err)
				continue
			}
			t.InlineOrigins[id] = strings.Join(fields[2:], " ")

		case "INLINE":
			rec, err := parseInline(fields[1:])
			if err != nil {
				warn("INLINE: %v", err)
				continue
			}
			if currentFunc == nil {
				warn("INLINE: no enclosing FUNC")
				continue
			}
			currentFunc.Inlines = append(currentFunc.Inlines, rec)

		case "FUNC":
			rest := fields[1:]
			multiple := false
			if len(rest) > 0 && rest[0] == "m" {
				multiple = true
				rest = rest[1:]
			}
			if len(rest) < 4 {
				warn("FUNC: want at least 4 fields, got %d", len(rest))
				continue
			}
			addr, err1 := parseHex(rest[0])
			size, err2 := parseHex(rest[1])
			paramSize, err3 := parseHex(rest[2])
			if err1 != nil || err2 != nil || err3 != nil {
				warn("FUNC: bad address/size/param_size")
				continue
			}
			t.Functions = append(t.Functions, Func{
				Address:   addr,
				Size:      size,
				ParamSize: paramSize,
				Name:      strings.Join(rest[3:], " "),
				Multiple:  multiple,
			})
			currentFunc = &t.Functions[len(t.Functions)-1]

		case "PUBLIC":
			rest := fields[1:]
			multiple := false
			if len(rest) > 0 && rest[0] == "m" {
				multiple = true
				rest = rest[1:]
			}
			if len(rest) < 3 {
				warn("PUBLIC: want at least 3 fields, got %d", len(rest))
				continue
			}
			addr, err1 := parseHex(rest[0])
			paramSize, err2 := parseHex(rest[1])
			if err1 != nil || err2 != nil {
				warn("PUBLIC: bad address/param_size")
				continue
			}
			t.Publics = append(t.Publics, Public{Address: addr, ParamSize: paramSize, Name: strings.Join(rest[2:], " "), Multiple: multiple})

		case "STACK":
			if err := parseStackLine(t, currentFunc, fields[1:]); err != nil {
				warn("STACK: %v", err)
			}

		default:
			// A bare LINE record: "<address> <size> <line> <file_id>",
			// belonging to the most recently emitted FUNC.
			if currentFunc == nil {
				warn("LINE record with no enclosing FUNC: %q", line)
				continue
			}
			rec, err := parseLine(fields)
			if err != nil {
				warn("LINE: %v", err)
				continue
			}
			currentFunc.Lines = append(currentFunc.Lines, rec)
		}
	}

	if !sawModule {
		t.Corrupt = true
	}
	t.finalize()
	return t
}

func parseHex(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}

func parseLine(fields []string) (LineRecord, error) {
	if len(fields) != 4 {
		return LineRecord{}, fmt.Errorf("want 4 fields, got %d", len(fields))
	}
	addr, err := parseHex(fields[0])
	if err != nil {
		return LineRecord{}, err
	}
	size, err := parseHex(fields[1])
	if err != nil {
		return LineRecord{}, err
	}
	lineNum, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return LineRecord{}, err
	}
	fileID, err := strconv.Atoi(fields[3])
	if err != nil {
		return LineRecord{}, err
	}
	return LineRecord{Address: addr, Size: size, Line: uint32(lineNum), FileID: fileID}, nil
}

// parseInline parses an INLINE record's fields after the leading
// "INLINE" token: "<depth> <call_site_line> <call_site_file> <origin_id>
// <address> <size> [address size]...".
func parseInline(fields []string) (InlineRecord, error) {
	if len(fields) < 6 || (len(fields)-4)%2 != 0 {
		return InlineRecord{}, fmt.Errorf("want depth, call_site_line, call_site_file, origin_id, then address/size pairs")
	}
	depth, err := strconv.Atoi(fields[0])
	if err != nil {
		return InlineRecord{}, fmt.Errorf("bad depth %q: %w", fields[0], err)
	}
	callSiteLine, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return InlineRecord{}, fmt.Errorf("bad call_site_line %q: %w", fields[1], err)
	}
	callSiteFile, err := strconv.Atoi(fields[2])
	if err != nil {
		return InlineRecord{}, fmt.Errorf("bad call_site_file %q: %w", fields[2], err)
	}
	originID, err := strconv.Atoi(fields[3])
	if err != nil {
		return InlineRecord{}, fmt.Errorf("bad origin_id %q: %w", fields[3], err)
	}
	rec := InlineRecord{Depth: depth, CallSiteLine: uint32(callSiteLine), CallSiteFile: callSiteFile, OriginID: originID}
	for i := 4; i+1 < len(fields); i += 2 {
		addr, err := parseHex(fields[i])
		if err != nil {
			return InlineRecord{}, fmt.Errorf("bad address %q: %w", fields[i], err)
		}
		size, err := parseHex(fields[i+1])
		if err != nil {
			return InlineRecord{}, fmt.Errorf("bad size %q: %w", fields[i+1], err)
		}
		rec.Ranges = append(rec.Ranges, InlineRange{Address: addr, Size: size})
	}
	return rec, nil
}

// parseStackLine dispatches "STACK WIN ..." and "STACK CFI [INIT] ..."
// records into t, given the fields after the leading "STACK" token.
func parseStackLine(t *Table, currentFunc *Func, fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("empty STACK record")
	}
	switch fields[0] {
	case "WIN":
		rec, err := parseWinRecord(fields[1:])
		if err != nil {
			return err
		}
		t.WinRecords = append(t.WinRecords, rec)
		return nil
	case "CFI":
		return parseCfiLine(t, fields[1:])
	default:
		return fmt.Errorf("unknown STACK record kind %q", fields[0])
	}
}

func parseWinRecord(fields []string) (WinStackRecord, error) {
	if len(fields) < 10 {
		return WinStackRecord{}, fmt.Errorf("want at least 10 fields, got %d", len(fields))
	}
	typ, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return WinStackRecord{}, fmt.Errorf("bad type %q: %w", fields[0], err)
	}
	rva, err := parseHex(fields[1])
	if err != nil {
		return WinStackRecord{}, fmt.Errorf("bad rva %q: %w", fields[1], err)
	}
	codeSize, err := parseHex(fields[2])
	if err != nil {
		return WinStackRecord{}, fmt.Errorf("bad code_size %q: %w", fields[2], err)
	}
	ints := make([]uint64, 6)
	for i, f := range fields[3:9] {
		v, err := strconv.ParseUint(f, 16, 32)
		if err != nil {
			return WinStackRecord{}, fmt.Errorf("bad field %q: %w", f, err)
		}
		ints[i] = v
	}
	hasProgram := fields[9] != "0"
	program := ""
	if len(fields) > 10 {
		program = strings.Join(fields[10:], " ")
	}
	return WinStackRecord{
		Type:               uint32(typ),
		RVA:                rva,
		CodeSize:           codeSize,
		PrologSize:         uint32(ints[0]),
		EpilogSize:         uint32(ints[1]),
		ParamSize:          uint32(ints[2]),
		SavedRegsSize:      uint32(ints[3]),
		LocalsSize:         uint32(ints[4]),
		MaxStackSize:       uint32(ints[5]),
		HasProgram:         hasProgram,
		ProgramOrFrameType: program,
	}, nil
}

func parseCfiLine(t *Table, fields []string) error {
	if len(fields) > 0 && fields[0] == "INIT" {
		if len(fields) < 3 {
			return fmt.Errorf("CFI INIT: want at least 2 fields, got %d", len(fields)-1)
		}
		addr, err := parseHex(fields[1])
		if err != nil {
			return fmt.Errorf("CFI INIT: bad address %q: %w", fields[1], err)
		}
		size, err := parseHex(fields[2])
		if err != nil {
			return fmt.Errorf("CFI INIT: bad size %q: %w", fields[2], err)
		}
		rules, err := parseCfiRules(fields[3:])
		if err != nil {
			return fmt.Errorf("CFI INIT: %w", err)
		}
		t.CfiInits = append(t.CfiInits, CfiInit{Address: addr, Size: size, Rules: rules})
		return nil
	}
	if len(fields) < 1 {
		return fmt.Errorf("CFI: want at least 1 field")
	}
	addr, err := parseHex(fields[0])
	if err != nil {
		return fmt.Errorf("CFI: bad address %q: %w", fields[0], err)
	}
	rules, err := parseCfiRules(fields[1:])
	if err != nil {
		return fmt.Errorf("CFI: %w", err)
	}
	t.CfiDeltas = append(t.CfiDeltas, CfiDelta{Address: addr, Rules: rules})
	return nil
}

// parseCfiRules parses whitespace-separated "reg: expr" pairs, where expr
// itself may contain embedded spaces between postfix tokens — so a pair
// boundary is any token ending in ':' that looks like a register/pseudo
// name, not a fixed field count.
func parseCfiRules(fields []string) (map[string]string, error) {
	rules := make(map[string]string)
	var reg string
	var expr []string
	flush := func() {
		if reg != "" {
			rules[reg] = strings.Join(expr, " ")
		}
	}
	for _, f := range fields {
		if strings.HasSuffix(f, ":") {
			flush()
			reg = strings.TrimSuffix(f, ":")
			expr = nil
			continue
		}
		if reg == "" {
			return nil, fmt.Errorf("expression token %q before any register name", f)
		}
		expr = append(expr, f)
	}
	flush()
	if len(rules) == 0 {
		return nil, fmt.Errorf("no rules parsed")
	}
	return rules, nil
}
