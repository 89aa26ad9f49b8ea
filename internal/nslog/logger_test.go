package nslog

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/suite"
)

type LoggerTest struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func (s *LoggerTest) TestTextSeverityNames() {
	var buf bytes.Buffer
	Init(FormatText, LevelTrace, &buf)

	Default().Warn("www.warningExample.com")

	s.Regexp(regexp.MustCompile(`severity=WARNING`), buf.String())
}

func (s *LoggerTest) TestJSONSeverityNames() {
	var buf bytes.Buffer
	Init(FormatJSON, LevelTrace, &buf)

	Default().Error("www.errorExample.com")

	s.Regexp(regexp.MustCompile(`"severity":"ERROR"`), buf.String())
}

func (s *LoggerTest) TestLevelFiltering() {
	var buf bytes.Buffer
	Init(FormatText, LevelInfo, &buf)

	Default().Debug("should be filtered")
	s.Empty(buf.String())

	Default().Info("should pass")
	s.NotEmpty(buf.String())
}

func (s *LoggerTest) TestForAttachesComponent() {
	var buf bytes.Buffer
	Init(FormatText, LevelInfo, &buf)

	For("nsdriver").Info("hello")

	s.Contains(buf.String(), "component=nsdriver")
}

func (s *LoggerTest) TestLevelVarType() {
	var v slog.LevelVar
	v.Set(LevelWarning)
	s.Equal(slog.LevelWarn, v.Level())
}
