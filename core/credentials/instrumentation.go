package credentials

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-sphere/core/credentials"

var logger = otelslog.NewLogger(scopeName)
