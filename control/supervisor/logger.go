package supervisor

import "github.com/sirupsen/logrus"

// log 决策模块的日志记录器
var log = logrus.WithField("module", "supervisor")
