package barrier

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "barrier")
