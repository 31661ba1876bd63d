package verifygin

import "regexp"

var reE164 = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
