package domain

// CreateInput is the POST /alarms payload. CodeID is caller chosen and
// globally unique; time is the local wall clock
type CreateInput struct {
	CodeID      string `json:"code_id" validate:"required,max=64" example:"wake-up-7036"`
	Email       string `json:"email" validate:"required,email" example:"kai@example.com"`
	LocalTime   string `json:"time" validate:"required,clock" example:"07:30"`
	Timezone    string `json:"timezone,omitempty" validate:"omitempty,tzname" example:"America/New_York"`
	DaysOfWeek  string `json:"days_of_week,omitempty" validate:"omitempty,weekdays" example:"Mon,Wed,Fri"`
	IsRecurring bool   `json:"is_recurring" example:"true"`
	Description string `json:"description,omitempty" validate:"omitempty,max=500" example:"morning run"`
}

// UpdateInput is the PUT /alarms/{code_id} payload. Every field is optional;
// absent fields keep their stored value
type UpdateInput struct {
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	LocalTime   *string `json:"time,omitempty" validate:"omitempty,clock"`
	Timezone    *string `json:"timezone,omitempty" validate:"omitempty,tzname"`
	DaysOfWeek  *string `json:"days_of_week,omitempty" validate:"omitempty,weekdays"`
	IsRecurring *bool   `json:"is_recurring,omitempty"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// ListInput filters GET /alarms
type ListInput struct {
	Email  string
	Status string
	Limit  int
	Offset int
}
