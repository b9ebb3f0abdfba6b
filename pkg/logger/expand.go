// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// fmt (and x/text/message) mark substitution failures with this prefix,
// e.g. "%!d(string=x)", "%!d(MISSING)", "%!(EXTRA int=1)"
const badFormatMarker = "%!"

// fmt appends unused args as "%!(EXTRA type=value, ...)"
const extraArgsMarker = "%!(EXTRA "

var typeVerbRe = regexp.MustCompile(`%[-+# 0-9.*\[\]]*T`)

const maxCauseDepth = 16

// Expander performs locale-aware printf style substitution.
// Safe for concurrent use.
type Expander struct {
	printer *message.Printer
}

var defaultExpander = MakeExpander(language.English)

func MakeExpander(locale language.Tag) *Expander {
	return &Expander{printer: message.NewPrinter(locale)}
}

// MakeExpanderForLocale parses a BCP 47 locale, falling back to English.
func MakeExpanderForLocale(locale string) *Expander {
	if locale == "" {
		return defaultExpander
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return defaultExpander
	}
	return MakeExpander(tag)
}

// Expand never fails: an empty format renders the args, no args returns the
// format unchanged, and a bad substitution falls back to the format followed
// by the rendered args.
func (e *Expander) Expand(format string, args ...any) string {
	rtn, _ := e.TryExpand(format, args...)
	return rtn
}

// TryExpand is Expand but also reports whether the substitution succeeded.
func (e *Expander) TryExpand(format string, args ...any) (rtn string, ok bool) {
	if format == "" {
		return DebugArgs(args), true
	}
	if len(args) == 0 {
		return format, true
	}
	defer func() {
		if r := recover(); r != nil {
			rtn, ok = fallbackExpand(format, args), false
		}
	}()
	out := e.printer.Sprintf(format, plainNumbers(format, args)...)
	out = trimExtraArgs(out)
	if !strings.Contains(out, badFormatMarker) {
		return out, true
	}
	// the marker may legitimately come from an argument's text ("%!" in the format is itself a bad verb)
	if !strings.Contains(format, badFormatMarker) && strings.Contains(DebugArgs(args), badFormatMarker) {
		return out, true
	}
	return fallbackExpand(format, args), false
}

func fallbackExpand(format string, args []any) string {
	return format + " " + DebugArgs(args)
}

// unused trailing args are ignored
func trimExtraArgs(out string) string {
	idx := strings.LastIndex(out, extraArgsMarker)
	if idx < 0 || !strings.HasSuffix(out, ")") {
		return out
	}
	return out[:idx]
}

// plainNumber formats its value with fmt, so the printer's locale digit
// grouping never reaches pids, exit codes or counts.
type plainNumber struct {
	val any
}

func (n plainNumber) Format(s fmt.State, verb rune) {
	fmt.Fprintf(s, fmt.FormatString(s, verb), n.val)
}

// plainNumbers wraps numeric args in plainNumber. Formats using %T are left
// alone so the reported type stays the caller's.
func plainNumbers(format string, args []any) []any {
	if typeVerbRe.MatchString(format) {
		return args
	}
	var rtn []any
	for idx, arg := range args {
		if !isNumber(arg) {
			continue
		}
		if rtn == nil {
			rtn = make([]any, len(args))
			copy(rtn, args)
		}
		rtn[idx] = plainNumber{val: arg}
	}
	if rtn == nil {
		return args
	}
	return rtn
}

func isNumber(arg any) bool {
	if arg == nil {
		return false
	}
	switch reflect.TypeOf(arg).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

// Expand uses the English locale.
func Expand(format string, args ...any) string {
	return defaultExpander.Expand(format, args...)
}

// DebugArgs renders args as "[a, b, c]".
func DebugArgs(args []any) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for idx, arg := range args {
		if idx > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(debugArg(arg))
	}
	sb.WriteByte(']')
	return sb.String()
}

func debugArg(arg any) (rtn string) {
	defer func() {
		if r := recover(); r != nil {
			rtn = fmt.Sprintf("<%T>", arg)
		}
	}()
	if arg == nil {
		return "null"
	}
	return fmt.Sprintf("%v", arg)
}

// FormatError returns msg, a newline, and the error's trace rendering.
func FormatError(err error, msg string) string {
	return msg + "\n" + ErrorTrace(err)
}

// ErrorTrace renders an error with its type, message, any stack detail the
// error carries (via %+v), and its cause chain. nil renders as "".
func ErrorTrace(err error) string {
	if err == nil {
		return ""
	}
	var sb strings.Builder
	writeErrorTrace(&sb, err, "", 0)
	return sb.String()
}

func writeErrorTrace(sb *strings.Builder, err error, prefix string, depth int) {
	msg := err.Error()
	fmt.Fprintf(sb, "%s%T: %s\n", prefix, err, msg)
	if _, ok := err.(fmt.Formatter); ok {
		detail := fmt.Sprintf("%+v", err)
		detail = strings.TrimPrefix(detail, msg)
		for _, line := range strings.Split(strings.Trim(detail, "\n"), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			sb.WriteString("\t")
			sb.WriteString(strings.TrimLeft(line, "\t"))
			sb.WriteString("\n")
		}
	}
	if depth >= maxCauseDepth {
		return
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, cause := range x.Unwrap() {
			if cause != nil {
				writeErrorTrace(sb, cause, "Caused by: ", depth+1)
			}
		}
	case interface{ Unwrap() error }:
		if cause := x.Unwrap(); cause != nil {
			writeErrorTrace(sb, cause, "Caused by: ", depth+1)
		}
	}
}
