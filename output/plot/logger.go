package plot

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "plot")
