package nlp

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "nlp")
