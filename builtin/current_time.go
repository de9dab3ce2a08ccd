package builtin

import (
	"context"
	"fmt"
	"time"

	"toolgate/tool"
)

type CurrentTimeParams struct {
	Timezone string `json:"timezone,omitempty" description:"IANA timezone name such as \"Europe/Stockholm\". Defaults to UTC."`
}

var CurrentTime = tool.Func(
	"Current time",
	"Returns the current date and time, optionally in a specific timezone.",
	"current_time",
	func(ctx context.Context, r tool.Runner, p CurrentTimeParams) tool.Result {
		loc := time.UTC
		if p.Timezone != "" {
			var err error
			loc, err = time.LoadLocation(p.Timezone)
			if err != nil {
				return tool.Error("Current time", fmt.Errorf("unknown timezone %q: %w", p.Timezone, err))
			}
		}
		now := time.Now().In(loc)
		return tool.Success("Current time", now.Format(time.RFC3339))
	},
)
