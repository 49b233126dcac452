// Package goroutine запускает фоновые задачи с перехватом panic:
// упавшая горутина пишет стек в лог вместо того, чтобы уронить процесс.
package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Reporter получает отчёт о панике в фоновой задаче.
type Reporter interface {
	Errorf(format string, args ...interface{})
}

var reporter Reporter = logrus.StandardLogger()

// SetReporter заменяет получателя отчётов о панике. По умолчанию
// используется стандартный логгер logrus.
func SetReporter(r Reporter) {
	if r != nil {
		reporter = r
	}
}

// SafeGo запускает fn в отдельной горутине под защитой от panic.
func SafeGo(fn func()) {
	go func() {
		defer reportPanic()
		fn()
	}()
}

// SafeGoWithContext — то же, что SafeGo, но fn получает контекст вызова.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer reportPanic()
		fn(ctx)
	}()
}

func reportPanic() {
	if r := recover(); r != nil {
		reporter.Errorf("Паника в фоновой задаче: %v\n%s", r, debug.Stack())
	}
}
