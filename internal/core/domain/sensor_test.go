package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPillboxButtons(t *testing.T) {

	assert := assert.New(t)

	dev := PillboxDevice("pillbox", "192.168.4.1")
	buttons := PillboxButtons(dev, 6)

	assert.Len(buttons, 4+6)
	assert.Equal(BUTTON_ID_OPEN, buttons[0].Id)
	assert.Equal("dispense_slot_1", buttons[4].Id)
	assert.Equal("dispense_slot_6", buttons[9].Id)
	for _, b := range buttons {
		assert.Equal(dev.Id, b.Device.Id)
		assert.Empty(b.Device.Manufacturer, "only the first entity carries full device info")
	}
}

func TestDeviceIdentityIgnoresAddress(t *testing.T) {

	a := PillboxDevice("pillbox", "192.168.4.1")
	b := PillboxDevice("pillbox", "10.0.0.5")

	assert.Equal(t, a.Id, b.Id)
	assert.Equal(t, "http://10.0.0.5/", b.ConfigURL)
	assert.NotEqual(t, a.Id, PillboxDevice("kitchen", "10.0.0.5").Id)
}

func TestPillboxInputNumbers(t *testing.T) {

	numbers := PillboxInputNumbers(PillboxDevice("pillbox", "192.168.4.1"), 6)

	assert.Len(t, numbers, 1)
	assert.Equal(t, float64(6), numbers[0].Max)
	assert.Equal(t, float64(1), numbers[0].Min)
}
