package mpc

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "mpc")
