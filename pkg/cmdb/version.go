package cmdb

// Version is the release of the cmdb module.
const Version = "0.1.0"
