package domain

// Tests resolve zones such as Indian/Mahe; embed the database so they do not
// depend on the host's zoneinfo.
import _ "time/tzdata"
