package vitals

// SignalType describes one of the simulated physiological channels.
type SignalType struct {
	ID        string
	Label     string
	AxisLabel string
	Unit      string
	Color     string
}

// Catalog lists every known signal in display order.
var Catalog = []SignalType{
	{ID: "heart", Label: "Electrocardiogram (EKG)", AxisLabel: "Amplitude (mV)", Unit: "BPM", Color: "#ef4444"},
	{ID: "lungs", Label: "Respiratory", AxisLabel: "Amplitude", Unit: "", Color: "#3b82f6"},
	{ID: "blood_pressure", Label: "Arterial Blood Pressure (ABP)", AxisLabel: "ABP (mmHg)", Unit: "mmHg", Color: "#dc2626"},
	{ID: "brain", Label: "Intracranial Pressure (ICP)", AxisLabel: "ICP (mmHg)", Unit: "mmHg", Color: "#8b5cf6"},
	{ID: "temperature", Label: "Body Temperature", AxisLabel: "Temperature (°C)", Unit: "°C", Color: "#f59e0b"},
}

// DefaultActive is the set of channels opened at startup.
var DefaultActive = []string{"blood_pressure", "brain", "heart"}

func Lookup(id string) (SignalType, bool) {
	for _, s := range Catalog {
		if s.ID == id {
			return s, true
		}
	}
	return SignalType{}, false
}

func IDs() []string {
	ids := make([]string, len(Catalog))
	for i, s := range Catalog {
		ids[i] = s.ID
	}
	return ids
}
