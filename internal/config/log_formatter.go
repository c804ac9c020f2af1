package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	colorRed         = 31
	colorGreen       = 32
	colorYellow      = 33
	colorBlue        = 36
	colorGray        = 37
	colorLightGreen  = 92
	colorLightYellow = 93
	colorCyan        = 96
)

// KrFormatter renders entries as key=value pairs with sorted fields.
type KrFormatter struct {
	DisableColors bool
}

func (f *KrFormatter) paint(color int, s string) string {
	if f.DisableColors {
		return s
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, s)
}

func (f *KrFormatter) pair(sb *strings.Builder, key string, valueColor int, value string) {
	if sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteString(f.paint(colorCyan, key))
	sb.WriteByte('=')
	sb.WriteString(f.paint(valueColor, value))
}

func levelColor(level log.Level) int {
	switch level {
	case log.DebugLevel, log.TraceLevel:
		return colorGray
	case log.WarnLevel:
		return colorYellow
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		return colorRed
	default:
		return colorBlue
	}
}

func (f *KrFormatter) Format(entry *log.Entry) ([]byte, error) {
	sb := &strings.Builder{}

	f.pair(sb, "level", levelColor(entry.Level), strings.ToUpper(entry.Level.String())[:4])
	f.pair(sb, "ts", colorLightYellow, entry.Time.Format("2006-01-02 15:04:05.000"))
	if entry.HasCaller() {
		f.pair(sb, "source", colorLightYellow, fmt.Sprintf("%s:%d", entry.Caller.File, entry.Caller.Line))
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		val := entry.Data[k]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		m, err := json.Marshal(val)
		if err != nil || len(m) == 0 {
			continue
		}
		s := string(m)
		valueColor := colorCyan
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			valueColor = colorGreen
		} else if strings.HasPrefix(s, "\"") && strings.HasSuffix(s, "\"") {
			valueColor = colorLightYellow
		}
		f.pair(sb, k, valueColor, s)
	}
	f.pair(sb, "msg", colorLightGreen, strconv.Quote(entry.Message))

	output := strings.ReplaceAll(sb.String(), "\r", "\\r")
	output = strings.ReplaceAll(output, "\n", "\\n") + "\n"
	return []byte(output), nil
}
