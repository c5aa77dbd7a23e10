package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// ColoredFormatter renders one line per entry: time, level, message, then
// key=value fields with job identifiers first.
type ColoredFormatter struct {
	TimestampFormat string
	// DisableColors forces plain output, e.g. when stderr is not a terminal
	DisableColors bool
}

// NewColoredFormatter returns a formatter with millisecond timestamps
func NewColoredFormatter() *ColoredFormatter {
	return &ColoredFormatter{TimestampFormat: "15:04:05.000"}
}

var priorityFields = map[string]int{
	"component": 1,
	"job_id":    2,
	"job_type":  3,
	"url":       4,
	"error":     5,
}

// Format implements logrus.Formatter
func (f *ColoredFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sortFields(keys)

	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	lc := levelColor(entry.Level)
	timeColor := color.New(color.FgYellow)
	keyColor := color.New(color.FgCyan)
	importantColor := color.New(color.FgGreen)
	for _, c := range []*color.Color{lc, timeColor, keyColor, importantColor} {
		if f.DisableColors {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}

	tsFormat := f.TimestampFormat
	if tsFormat == "" {
		tsFormat = time.RFC3339
	}
	b.WriteString(timeColor.Sprint(entry.Time.Format(tsFormat)))
	b.WriteByte(' ')
	b.WriteString(lc.Sprintf("%-7s", strings.ToUpper(entry.Level.String())))
	b.WriteByte(' ')
	b.WriteString(lc.Sprint(entry.Message))

	for _, k := range keys {
		kc := keyColor
		if _, ok := priorityFields[k]; ok {
			kc = importantColor
		}
		b.WriteByte(' ')
		b.WriteString(kc.Sprintf("%s=", k))
		b.WriteString(formatValue(entry.Data[k]))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case error:
		return fmt.Sprintf("%q", v.Error())
	case fmt.Stringer:
		return fmt.Sprintf("%q", v.String())
	default:
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(jsonBytes)
	}
}

func levelColor(level logrus.Level) *color.Color {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return color.New(color.FgBlue)
	case logrus.InfoLevel:
		return color.New(color.FgGreen)
	case logrus.WarnLevel:
		return color.New(color.FgYellow)
	case logrus.ErrorLevel:
		return color.New(color.FgRed)
	case logrus.FatalLevel, logrus.PanicLevel:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}

func sortFields(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := priorityFields[keys[i]], priorityFields[keys[j]]
		switch {
		case pi != 0 && pj != 0:
			return pi < pj
		case pi != 0:
			return true
		case pj != 0:
			return false
		}
		return keys[i] < keys[j]
	})
}
