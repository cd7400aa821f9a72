/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

const defaultTimestampFormat = "2006-01-02 15:04:05.000"

var (
	registryMu   sync.RWMutex
	registry     = map[string]*logrus.Logger{}
	baseLevel    = ParseLogLevel(EnvDefaultString("LOG_LEVEL", "info"))
	outputFormat = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
	output       io.Writer = os.Stdout
)

// ConfigureLogLevel sets the level of every named logger, existing and future.
func ConfigureLogLevel(level string) {
	lvl := ParseLogLevel(level)
	registryMu.Lock()
	defer registryMu.Unlock()
	baseLevel = lvl
	for _, l := range registry {
		l.SetLevel(lvl)
	}
}

// ConfigureLogFormat selects "text" or "json" output for loggers created afterwards.
func ConfigureLogFormat(format string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		outputFormat = "json"
	} else {
		outputFormat = "text"
	}
}

// ConfigureOutput redirects every named logger to w.
func ConfigureOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	output = w
	for _, l := range registry {
		l.SetOutput(w)
	}
}

func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// NewLogger returns the logger registered under name, creating it on first use.
func NewLogger(name string) *logrus.Logger {
	registryMu.Lock()
	defer registryMu.Unlock()
	if l, ok := registry[name]; ok {
		return l
	}
	l := logrus.New()
	l.SetOutput(output)
	l.SetLevel(baseLevel)
	l.SetReportCaller(true)
	if outputFormat == "json" {
		l.SetFormatter(&JSONLogFormatter{LoggerName: name})
	} else {
		l.SetFormatter(&TextLogFormatter{LoggerName: name, NameWidth: 10, Color: !color.NoColor})
	}
	registry[name] = l
	return l
}

// SetLoggerLevel changes the level of one named logger. It reports false
// when no logger has that name.
func SetLoggerLevel(name, level string) bool {
	registryMu.RLock()
	l, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return false
	}
	l.SetLevel(ParseLogLevel(level))
	return true
}

// LoggerNames lists the registered logger names in sorted order.
func LoggerNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TextLogFormatter writes log4j style lines:
//
//	2025-01-02 15:04:05.000    INFO 4242   --- [REPOSITORY] base.go:42 : message
type TextLogFormatter struct {
	LoggerName      string
	TimestampFormat string
	NameWidth       int
	Color           bool
}

func (f *TextLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	tsFormat := f.TimestampFormat
	if tsFormat == "" {
		tsFormat = defaultTimestampFormat
	}
	lvl := fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String()))
	name := fmt.Sprintf("%*s", f.NameWidth, limitRunes(f.LoggerName, f.NameWidth))
	caller := ""
	if entry.Caller != nil {
		caller = " " + filepath.Base(entry.Caller.File) + ":" + strconv.Itoa(entry.Caller.Line)
	}
	if f.Color {
		lvl = levelColor(entry.Level).Sprint(lvl)
		name = color.CyanString(name)
		caller = color.New(color.Faint).Sprint(caller)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %-6d --- [%s]%s : %s", entry.Time.Format(tsFormat), lvl, os.Getpid(), name, caller, entry.Message)
	for _, k := range sortedKeys(entry.Data) {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Data[k])
	}
	sb.WriteByte('\n')
	return []byte(sb.String()), nil
}

// JSONLogFormatter writes one JSON object per line.
type JSONLogFormatter struct {
	LoggerName      string
	TimestampFormat string
}

type jsonLogRecord struct {
	Time    string                 `json:"time"`
	Level   string                 `json:"level"`
	Logger  string                 `json:"logger"`
	Caller  string                 `json:"caller,omitempty"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	tsFormat := f.TimestampFormat
	if tsFormat == "" {
		tsFormat = defaultTimestampFormat
	}
	rec := jsonLogRecord{
		Time:    entry.Time.Format(tsFormat),
		Level:   entry.Level.String(),
		Logger:  f.LoggerName,
		Message: entry.Message,
	}
	if entry.Caller != nil {
		rec.Caller = filepath.Base(entry.Caller.File) + ":" + strconv.Itoa(entry.Caller.Line)
	}
	if len(entry.Data) > 0 {
		rec.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			rec.Fields[k] = v
		}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func levelColor(level logrus.Level) *color.Color {
	switch level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return color.New(color.FgRed)
	case logrus.WarnLevel:
		return color.New(color.FgYellow)
	case logrus.InfoLevel:
		return color.New(color.FgGreen)
	case logrus.DebugLevel:
		return color.New(color.FgBlue)
	default:
		return color.New(color.FgMagenta)
	}
}

func sortedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func limitRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

func EnvDefaultString(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}

// EnvDefaultDuration parses key with time.ParseDuration, falling back to def.
func EnvDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return def
		}
		return d
	}
	return def
}
